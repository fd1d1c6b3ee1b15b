/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  All money fields are decimal strings ("1200.50"), never JSON numbers.
  Float64 cannot represent cents exactly; the wire format must not undo
  the decimal discipline of the core.

VALIDATION:
  Request types carry validator/v10 struct tags; handlers run the shared
  validator instance before touching domain logic. Domain-level rules
  (percent range, negative amounts) are still enforced by the core - the
  tags only reject structurally bad input early.

SEE ALSO:
  - handlers.go: uses these types
  - billing/types.go: the domain entities these project
*/
package api

import (
	"time"

	"github.com/brightpath/tuition-engine/billing"
)

// =============================================================================
// PACKAGE TYPES
// =============================================================================

type PackageDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TotalFee           string `json:"total_fee"`
	DownpaymentPercent string `json:"downpayment_percent"`
	InstallmentMonths  int    `json:"installment_months"`
	CreatedAt          string `json:"created_at,omitempty"`
}

type CreatePackageRequest struct {
	Name               string `json:"name" validate:"required"`
	TotalFee           string `json:"total_fee" validate:"required"`
	DownpaymentPercent string `json:"downpayment_percent" validate:"required"`
	InstallmentMonths  int    `json:"installment_months" validate:"gte=0"`
}

// =============================================================================
// ENROLLMENT TYPES
// =============================================================================

type EnrollmentDTO struct {
	ID                 string `json:"id"`
	StudentID          string `json:"student_id"`
	PackageID          string `json:"package_id,omitempty"`
	EnrollmentDate     string `json:"enrollment_date"`
	TotalFee           string `json:"total_fee"`
	DownpaymentPercent string `json:"downpayment_percent"`
	InstallmentMonths  int    `json:"installment_months"`
	DownpaymentAmount  string `json:"downpayment_amount"`
	RemainingBalance   string `json:"remaining_balance"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateEnrollmentRequest enrolls a student into a package. StudentID is
// optional: when empty a student number is allocated automatically.
type CreateEnrollmentRequest struct {
	StudentID      string `json:"student_id"`
	PackageID      string `json:"package_id" validate:"required"`
	EnrollmentDate string `json:"enrollment_date" validate:"required"`
}

// EnrollmentResponse bundles the new enrollment with its generated schedule.
type EnrollmentResponse struct {
	Enrollment EnrollmentDTO `json:"enrollment"`
	Schedules  []ScheduleDTO `json:"schedules"`
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

type ScheduleDTO struct {
	ID            string `json:"id"`
	EnrollmentID  string `json:"enrollment_id"`
	InstallmentNo int    `json:"installment_no"`
	DueDate       string `json:"due_date"`
	AmountDue     string `json:"amount_due"`
	Status        string `json:"status"`
	PaidAt        string `json:"paid_at,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	ReceiptNo     string `json:"receipt_no,omitempty"`
}

// MarkPaidRequest settles one schedule directly at the counter.
type MarkPaidRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	ReceiptNo     string `json:"receipt_no"`
	Remarks       string `json:"remarks"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionDTO struct {
	ID              string `json:"id"`
	EnrollmentID    string `json:"enrollment_id"`
	ScheduleID      string `json:"schedule_id,omitempty"`
	Amount          string `json:"amount"`
	Type            string `json:"type"`
	TransactionDate string `json:"transaction_date"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	ReferenceNo     string `json:"reference_no,omitempty"`
	Remarks         string `json:"remarks,omitempty"`
	ActorID         string `json:"actor_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type RecordPaymentRequest struct {
	Amount        string `json:"amount" validate:"required"`
	PaymentMethod string `json:"payment_method"`
	ReferenceNo   string `json:"reference_no"`
	Remarks       string `json:"remarks"`
	ActorID       string `json:"actor_id"`
}

// RecordAdjustmentRequest covers both adjustments and refunds; the endpoint
// determines the transaction type.
type RecordAdjustmentRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Remarks string `json:"remarks"`
	ActorID string `json:"actor_id"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

type BalanceDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	TotalFee     string `json:"total_fee"`
	TotalPaid    string `json:"total_paid"`
	Adjustments  string `json:"adjustments"`
	Refunds      string `json:"refunds"`
	NetPaid      string `json:"net_paid"`
	Balance      string `json:"balance"`
}

// =============================================================================
// MISC
// =============================================================================

type StudentNumberDTO struct {
	StudentNumber string `json:"student_number"`
}

type OverdueRunDTO struct {
	Flipped int    `json:"flipped"`
	RanAt   string `json:"ran_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPackageDTO(p billing.Package) PackageDTO {
	return PackageDTO{
		ID:                 p.ID,
		Name:               p.Name,
		TotalFee:           p.TotalFee.String(),
		DownpaymentPercent: p.DownpaymentPercent.String(),
		InstallmentMonths:  p.InstallmentMonths,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
}

func toEnrollmentDTO(e billing.Enrollment) EnrollmentDTO {
	return EnrollmentDTO{
		ID:                 e.ID,
		StudentID:          e.StudentID,
		PackageID:          e.PackageID,
		EnrollmentDate:     e.EnrollmentDate.String(),
		TotalFee:           e.TotalFee.String(),
		DownpaymentPercent: e.DownpaymentPercent.String(),
		InstallmentMonths:  e.InstallmentMonths,
		DownpaymentAmount:  e.DownpaymentAmount.String(),
		RemainingBalance:   e.RemainingBalance.String(),
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

func toScheduleDTO(s billing.PaymentSchedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:            s.ID,
		EnrollmentID:  s.EnrollmentID,
		InstallmentNo: s.InstallmentNo,
		DueDate:       s.DueDate.String(),
		AmountDue:     s.AmountDue.String(),
		Status:        string(s.Status),
		PaymentMethod: s.PaymentMethod,
		ReceiptNo:     s.ReceiptNo,
	}
	if s.PaidAt != nil {
		dto.PaidAt = s.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toScheduleDTOs(schedules []billing.PaymentSchedule) []ScheduleDTO {
	dtos := make([]ScheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		dtos = append(dtos, toScheduleDTO(s))
	}
	return dtos
}

func toTransactionDTO(tx billing.PaymentTransaction) TransactionDTO {
	return TransactionDTO{
		ID:              tx.ID,
		EnrollmentID:    tx.EnrollmentID,
		ScheduleID:      tx.ScheduleID,
		Amount:          tx.Amount.String(),
		Type:            string(tx.Type),
		TransactionDate: tx.TransactionDate.String(),
		PaymentMethod:   tx.PaymentMethod,
		ReferenceNo:     tx.ReferenceNo,
		Remarks:         tx.Remarks,
		ActorID:         tx.ActorID,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTOs(txs []billing.PaymentTransaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	return dtos
}

func toBalanceDTO(b billing.BalanceSummary) BalanceDTO {
	return BalanceDTO{
		EnrollmentID: b.EnrollmentID,
		TotalFee:     b.TotalFee.String(),
		TotalPaid:    b.TotalPaid.String(),
		Adjustments:  b.Adjustments.String(),
		Refunds:      b.Refunds.String(),
		NetPaid:      b.NetPaid.String(),
		Balance:      b.Balance.String(),
	}
}
