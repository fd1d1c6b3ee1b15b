/*
handlers.go - HTTP API handlers for the tuition billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain engines.

ENDPOINTS:
  Packages:
    GET    /api/packages                List billing packages
    POST   /api/packages                Create a package
    GET    /api/packages/{id}           Get package details

  Enrollments:
    GET    /api/enrollments                      List enrollments
    POST   /api/enrollments                      Enroll a student (generates schedule)
    GET    /api/enrollments/{id}                 Get enrollment details
    GET    /api/enrollments/{id}/schedules       List payment schedules
    POST   /api/enrollments/{id}/schedules       Regenerate schedules (destructive)
    GET    /api/enrollments/{id}/transactions    Transaction history
    GET    /api/enrollments/{id}/balance         Balance summary
    POST   /api/enrollments/{id}/payments        Record a payment
    POST   /api/enrollments/{id}/adjustments     Record an adjustment
    POST   /api/enrollments/{id}/refunds         Record a refund

  Schedules:
    POST   /api/schedules/{id}/pay      Mark one schedule paid at the counter

  Students:
    POST   /api/students/numbers        Allocate the next student number

  Admin:
    POST   /api/admin/overdue/run       Run the overdue updater now

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel:
  - 400: billing.ErrValidation (bad terms, negative amounts)
  - 404: billing.ErrNotFound
  - 409: billing.ErrDuplicateStudentNumber, billing.ErrSequenceExhausted
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public;
  front with a gateway in production.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightpath/tuition-engine/billing"
	"github.com/brightpath/tuition-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          *sqlite.Store
	Generator      *billing.ScheduleGenerator
	Ledger         *billing.LedgerEngine
	Overdue        *billing.OverdueUpdater
	StudentNumbers *billing.StudentNumberGenerator

	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler creates a handler with the engines wired to the given store.
func NewHandler(store *sqlite.Store, studentPrefix string, logger *zap.Logger) *Handler {
	return &Handler{
		Store:          store,
		Generator:      billing.NewScheduleGenerator(store),
		Ledger:         billing.NewLedgerEngine(store),
		Overdue:        billing.NewOverdueUpdater(store),
		StudentNumbers: billing.NewStudentNumberGenerator(store, studentPrefix),
		logger:         logger,
		validate:       validator.New(),
	}
}

// =============================================================================
// PACKAGE HANDLERS
// =============================================================================

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.Store.ListPackages(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to list packages", err)
		return
	}

	dtos := make([]PackageDTO, 0, len(packages))
	for _, p := range packages {
		dtos = append(dtos, toPackageDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "Failed to get package", err)
		return
	}
	writeJSON(w, http.StatusOK, toPackageDTO(p))
}

func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req CreatePackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid request", err)
		return
	}

	totalFee, err := billing.ParseMoney(req.TotalFee)
	if err != nil {
		writeBadRequest(w, "Invalid total_fee", err)
		return
	}
	pct, err := billing.ParsePercent(req.DownpaymentPercent)
	if err != nil {
		writeBadRequest(w, "Invalid downpayment_percent", err)
		return
	}
	if err := billing.ValidateTerms(totalFee, pct, req.InstallmentMonths); err != nil {
		h.writeError(w, r, "Invalid billing terms", err)
		return
	}

	p := billing.Package{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		TotalFee:           totalFee,
		DownpaymentPercent: pct,
		InstallmentMonths:  req.InstallmentMonths,
		CreatedAt:          time.Now().UTC(),
	}
	if err := h.Store.SavePackage(r.Context(), p); err != nil {
		h.writeError(w, r, "Failed to create package", err)
		return
	}

	h.logger.Info("package created",
		zap.String("package_id", p.ID),
		zap.String("total_fee", p.TotalFee.String()))
	writeJSON(w, http.StatusCreated, toPackageDTO(p))
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.Store.ListEnrollments(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to list enrollments", err)
		return
	}

	dtos := make([]EnrollmentDTO, 0, len(enrollments))
	for _, e := range enrollments {
		dtos = append(dtos, toEnrollmentDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := h.Store.GetEnrollment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "Failed to get enrollment", err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

// CreateEnrollment enrolls a student into a package and generates the
// initial payment schedule in one transaction. When student_id is omitted
// a student number is allocated first.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid request", err)
		return
	}

	enrolledOn, err := billing.ParseDate(req.EnrollmentDate)
	if err != nil {
		writeBadRequest(w, "Invalid enrollment_date format (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	pkg, err := h.Store.GetPackage(ctx, req.PackageID)
	if err != nil {
		h.writeError(w, r, "Failed to get package", err)
		return
	}

	studentID := req.StudentID
	if studentID == "" {
		studentID, err = h.StudentNumbers.GenerateUnique(ctx)
		if err != nil {
			h.writeError(w, r, "Failed to allocate student number", err)
			return
		}
	}

	e, schedules, err := h.Generator.Enroll(ctx, studentID, pkg, enrolledOn)
	if err != nil {
		h.writeError(w, r, "Failed to enroll", err)
		return
	}

	h.logger.Info("enrollment created",
		zap.String("enrollment_id", e.ID),
		zap.String("student_id", e.StudentID),
		zap.Int("schedules", len(schedules)))
	writeJSON(w, http.StatusCreated, EnrollmentResponse{
		Enrollment: toEnrollmentDTO(e),
		Schedules:  toScheduleDTOs(schedules),
	})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Store.SchedulesByEnrollment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "Failed to list schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTOs(schedules))
}

// RegenerateSchedules replaces the enrollment's schedules with a freshly
// computed set. Destructive: existing rows are dropped, and transactions
// recorded against them keep dangling references.
func (h *Handler) RegenerateSchedules(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")

	schedules, err := h.Generator.Generate(r.Context(), enrollmentID)
	if err != nil {
		h.writeError(w, r, "Failed to regenerate schedules", err)
		return
	}

	h.logger.Info("schedules regenerated",
		zap.String("enrollment_id", enrollmentID),
		zap.Int("count", len(schedules)))
	writeJSON(w, http.StatusCreated, toScheduleDTOs(schedules))
}

// MarkSchedulePaid settles one schedule directly, bypassing allocation order.
func (h *Handler) MarkSchedulePaid(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "id")

	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid request", err)
		return
	}

	tx, err := h.Ledger.MarkAsPaid(r.Context(), scheduleID, req.PaymentMethod, req.ReceiptNo, req.Remarks)
	if err != nil {
		h.writeError(w, r, "Failed to mark schedule paid", err)
		return
	}

	h.logger.Info("schedule settled",
		zap.String("schedule_id", scheduleID),
		zap.String("amount", tx.Amount.String()))
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := chi.URLParam(r, "id")

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid request", err)
		return
	}

	amount, err := billing.ParseMoney(req.Amount)
	if err != nil {
		writeBadRequest(w, "Invalid amount", err)
		return
	}

	tx, err := h.Ledger.RecordPayment(r.Context(), enrollmentID,
		amount, req.PaymentMethod, req.ReferenceNo, req.Remarks, req.ActorID)
	if err != nil {
		h.writeError(w, r, "Failed to record payment", err)
		return
	}

	h.logger.Info("payment recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("amount", amount.String()))
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	h.recordCorrection(w, r, billing.TxAdjustment)
}

func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	h.recordCorrection(w, r, billing.TxRefund)
}

func (h *Handler) recordCorrection(w http.ResponseWriter, r *http.Request, typ billing.TransactionType) {
	enrollmentID := chi.URLParam(r, "id")

	var req RecordAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeBadRequest(w, "Invalid request", err)
		return
	}

	amount, err := billing.ParseMoney(req.Amount)
	if err != nil {
		writeBadRequest(w, "Invalid amount", err)
		return
	}

	var tx billing.PaymentTransaction
	if typ == billing.TxRefund {
		tx, err = h.Ledger.RecordRefund(r.Context(), enrollmentID, amount, req.Remarks, req.ActorID)
	} else {
		tx, err = h.Ledger.RecordAdjustment(r.Context(), enrollmentID, amount, req.Remarks, req.ActorID)
	}
	if err != nil {
		h.writeError(w, r, "Failed to record "+string(typ), err)
		return
	}

	h.logger.Info("correction recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("type", string(typ)),
		zap.String("amount", amount.String()))
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.TransactionsByEnrollment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "Failed to get transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Ledger.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(summary))
}

// =============================================================================
// STUDENT NUMBER HANDLERS
// =============================================================================

func (h *Handler) GenerateStudentNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.StudentNumbers.GenerateUnique(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to allocate student number", err)
		return
	}
	writeJSON(w, http.StatusCreated, StudentNumberDTO{StudentNumber: number})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunOverdueUpdate flips stale UNPAID schedules to OVERDUE immediately,
// outside the periodic scheduler.
func (h *Handler) RunOverdueUpdate(w http.ResponseWriter, r *http.Request) {
	flipped, err := h.Overdue.UpdateOverdueStatuses(r.Context())
	if err != nil {
		h.writeError(w, r, "Overdue update failed", err)
		return
	}

	h.logger.Info("overdue update ran", zap.Int("flipped", flipped))
	writeJSON(w, http.StatusOK, OverdueRunDTO{
		Flipped: flipped,
		RanAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeError maps domain sentinels to HTTP status and logs server-side
// failures. Client errors are not logged at error level.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrDuplicateStudentNumber),
		errors.Is(err, billing.ErrSequenceExhausted):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}

	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
