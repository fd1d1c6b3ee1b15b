// Package store provides an in-memory billing.TxStore for tests and dev.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brightpath/tuition-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.Mutex

	enrollments  map[string]billing.Enrollment
	schedules    map[string]billing.PaymentSchedule // by schedule id
	transactions []billing.PaymentTransaction       // append-only
	maxSeq       map[int]int                        // year -> highest allocated sequence
	claimed      map[string]bool                    // "year-seq" claims
}

func NewMemory() *Memory {
	return &Memory{
		enrollments: make(map[string]billing.Enrollment),
		schedules:   make(map[string]billing.PaymentSchedule),
		maxSeq:      make(map[int]int),
		claimed:     make(map[string]bool),
	}
}

// --- enrollments ---

func (m *Memory) SaveEnrollment(_ context.Context, e billing.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEnrollmentLocked(e)
}

func (m *Memory) saveEnrollmentLocked(e billing.Enrollment) error {
	m.enrollments[e.ID] = e
	return nil
}

func (m *Memory) GetEnrollment(_ context.Context, id string) (billing.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEnrollmentLocked(id)
}

func (m *Memory) getEnrollmentLocked(id string) (billing.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return billing.Enrollment{}, &billing.NotFoundError{Kind: "enrollment", ID: id}
	}
	return e, nil
}

// --- schedules ---

func (m *Memory) ReplaceSchedules(_ context.Context, enrollmentID string, schedules []billing.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceSchedulesLocked(enrollmentID, schedules)
}

func (m *Memory) replaceSchedulesLocked(enrollmentID string, schedules []billing.PaymentSchedule) error {
	for id, s := range m.schedules {
		if s.EnrollmentID == enrollmentID {
			delete(m.schedules, id)
		}
	}
	for _, s := range schedules {
		m.schedules[s.ID] = s
	}
	return nil
}

func (m *Memory) SchedulesByEnrollment(_ context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedulesByEnrollmentLocked(enrollmentID), nil
}

func (m *Memory) schedulesByEnrollmentLocked(enrollmentID string) []billing.PaymentSchedule {
	var rows []billing.PaymentSchedule
	for _, s := range m.schedules {
		if s.EnrollmentID == enrollmentID {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].InstallmentNo < rows[j].InstallmentNo
	})
	return rows
}

func (m *Memory) OutstandingSchedules(_ context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outstandingSchedulesLocked(enrollmentID), nil
}

func (m *Memory) outstandingSchedulesLocked(enrollmentID string) []billing.PaymentSchedule {
	var rows []billing.PaymentSchedule
	for _, s := range m.schedules {
		if s.EnrollmentID == enrollmentID && s.Status.Outstanding() {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		return rows[i].InstallmentNo < rows[j].InstallmentNo
	})
	return rows
}

func (m *Memory) GetSchedule(_ context.Context, id string) (billing.PaymentSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getScheduleLocked(id)
}

func (m *Memory) getScheduleLocked(id string) (billing.PaymentSchedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return billing.PaymentSchedule{}, &billing.NotFoundError{Kind: "schedule", ID: id}
	}
	return s, nil
}

func (m *Memory) UpdateScheduleStatus(_ context.Context, s billing.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateScheduleStatusLocked(s)
}

func (m *Memory) updateScheduleStatusLocked(s billing.PaymentSchedule) error {
	existing, ok := m.schedules[s.ID]
	if !ok {
		return &billing.NotFoundError{Kind: "schedule", ID: s.ID}
	}
	existing.Status = s.Status
	existing.PaidAt = s.PaidAt
	existing.PaymentMethod = s.PaymentMethod
	existing.ReceiptNo = s.ReceiptNo
	m.schedules[s.ID] = existing
	return nil
}

func (m *Memory) UnpaidDueBefore(_ context.Context, day billing.Date) ([]billing.PaymentSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []billing.PaymentSchedule
	for _, s := range m.schedules {
		if s.Status == billing.StatusUnpaid && s.DueDate.Before(day) {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].DueDate.Before(rows[j].DueDate)
	})
	return rows, nil
}

// --- transactions (append-only; no update or delete path exists) ---

func (m *Memory) AppendTransaction(_ context.Context, tx billing.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(tx)
}

func (m *Memory) appendTransactionLocked(tx billing.PaymentTransaction) error {
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Memory) TransactionsByEnrollment(_ context.Context, enrollmentID string) ([]billing.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactionsByEnrollmentLocked(enrollmentID), nil
}

func (m *Memory) transactionsByEnrollmentLocked(enrollmentID string) []billing.PaymentTransaction {
	var txs []billing.PaymentTransaction
	for _, tx := range m.transactions {
		if tx.EnrollmentID == enrollmentID {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (m *Memory) TransactionsBySchedule(_ context.Context, scheduleID string) ([]billing.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactionsByScheduleLocked(scheduleID), nil
}

func (m *Memory) transactionsByScheduleLocked(scheduleID string) []billing.PaymentTransaction {
	var txs []billing.PaymentTransaction
	for _, tx := range m.transactions {
		if tx.ScheduleID == scheduleID {
			txs = append(txs, tx)
		}
	}
	return txs
}

// --- student numbers ---

func (m *Memory) AllocateStudentSequence(_ context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocateStudentSequenceLocked(year)
}

func (m *Memory) allocateStudentSequenceLocked(year int) (int, error) {
	seq := m.maxSeq[year] + 1
	key := fmt.Sprintf("%d-%04d", year, seq)
	if m.claimed[key] {
		return 0, billing.ErrDuplicateStudentNumber
	}
	m.maxSeq[year] = seq
	m.claimed[key] = true
	return seq, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a snapshot
// plus rollback on error. The mutex is held for the whole transaction, so
// inner operations go through an unlocked view.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	enrollments  map[string]billing.Enrollment
	schedules    map[string]billing.PaymentSchedule
	transactions []billing.PaymentTransaction
	maxSeq       map[int]int
	claimed      map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		enrollments:  make(map[string]billing.Enrollment, len(tm.enrollments)),
		schedules:    make(map[string]billing.PaymentSchedule, len(tm.schedules)),
		transactions: append([]billing.PaymentTransaction{}, tm.transactions...),
		maxSeq:       make(map[int]int, len(tm.maxSeq)),
		claimed:      make(map[string]bool, len(tm.claimed)),
	}
	for k, v := range tm.enrollments {
		snap.enrollments[k] = v
	}
	for k, v := range tm.schedules {
		snap.schedules[k] = v
	}
	for k, v := range tm.maxSeq {
		snap.maxSeq[k] = v
	}
	for k, v := range tm.claimed {
		snap.claimed[k] = v
	}
	return snap
}

func (tm *TxMemory) restore(snap memorySnapshot) {
	tm.enrollments = snap.enrollments
	tm.schedules = snap.schedules
	tm.transactions = snap.transactions
	tm.maxSeq = snap.maxSeq
	tm.claimed = snap.claimed
}

// txMemoryView accesses the parent maps directly; the WithTx caller holds
// the lock for the duration.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) SaveEnrollment(_ context.Context, e billing.Enrollment) error {
	return tv.parent.saveEnrollmentLocked(e)
}

func (tv *txMemoryView) GetEnrollment(_ context.Context, id string) (billing.Enrollment, error) {
	return tv.parent.getEnrollmentLocked(id)
}

func (tv *txMemoryView) ReplaceSchedules(_ context.Context, enrollmentID string, schedules []billing.PaymentSchedule) error {
	return tv.parent.replaceSchedulesLocked(enrollmentID, schedules)
}

func (tv *txMemoryView) SchedulesByEnrollment(_ context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	return tv.parent.schedulesByEnrollmentLocked(enrollmentID), nil
}

func (tv *txMemoryView) OutstandingSchedules(_ context.Context, enrollmentID string) ([]billing.PaymentSchedule, error) {
	return tv.parent.outstandingSchedulesLocked(enrollmentID), nil
}

func (tv *txMemoryView) GetSchedule(_ context.Context, id string) (billing.PaymentSchedule, error) {
	return tv.parent.getScheduleLocked(id)
}

func (tv *txMemoryView) UpdateScheduleStatus(_ context.Context, s billing.PaymentSchedule) error {
	return tv.parent.updateScheduleStatusLocked(s)
}

func (tv *txMemoryView) UnpaidDueBefore(ctx context.Context, day billing.Date) ([]billing.PaymentSchedule, error) {
	var rows []billing.PaymentSchedule
	for _, s := range tv.parent.schedules {
		if s.Status == billing.StatusUnpaid && s.DueDate.Before(day) {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].DueDate.Before(rows[j].DueDate)
	})
	return rows, nil
}

func (tv *txMemoryView) AppendTransaction(_ context.Context, tx billing.PaymentTransaction) error {
	return tv.parent.appendTransactionLocked(tx)
}

func (tv *txMemoryView) TransactionsByEnrollment(_ context.Context, enrollmentID string) ([]billing.PaymentTransaction, error) {
	return tv.parent.transactionsByEnrollmentLocked(enrollmentID), nil
}

func (tv *txMemoryView) TransactionsBySchedule(_ context.Context, scheduleID string) ([]billing.PaymentTransaction, error) {
	return tv.parent.transactionsByScheduleLocked(scheduleID), nil
}

func (tv *txMemoryView) AllocateStudentSequence(_ context.Context, year int) (int, error) {
	return tv.parent.allocateStudentSequenceLocked(year)
}
