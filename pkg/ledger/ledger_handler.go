package ledger

import (
	"errors"
	"net/http"

	"github.com/enaema/budget-ledger/internal/rest"
	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// MonthSummaryDTO keeps the field names the existing dashboard reads.
type MonthSummaryDTO struct {
	Month                 string  `json:"month"`
	TotalLimit            string  `json:"totalLimit"`
	TotalExpense          float64 `json:"totalExpense"`
	GroceriesExpense      float64 `json:"groceriesExpense"`
	TransportationExpense float64 `json:"transportationExpense"`
	HealthcareExpense     float64 `json:"healthcareExpense"`
	UtilityExpense        float64 `json:"utilityExpense"`
	CharityExpense        float64 `json:"charityExpense"`
	MiscellaneousExpense  float64 `json:"miscellaneousExpense"`
}

type DeleteResultDTO struct {
	DeletedCount int `json:"deletedCount"`
}

type Handler struct {
	service     Service
	csvRenderer SummaryRenderer
	formatter   AmountFormatter
}

func NewHandler(service Service, csvRenderer SummaryRenderer, formatter AmountFormatter) *Handler {
	return &Handler{service, csvRenderer, formatter}
}

// CreateEntry godoc
// @Summary Record spending for today
// @Description Merge the submitted categories into today's entry, creating it when absent
// @Tags Ledger
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} rest.ErrorResponse
// @Failure 500 {object} rest.ErrorResponse
// @Router /api/tasks [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	log.Debug("Recording ledger submission")
	submission, err := DecodeSubmission(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	entry, err := h.service.Upsert(r.Context(), submission)
	if err != nil {
		log.Errorf("failed to save ledger entry: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to save entry", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, EntryToDTO(entry))
}

// ListEntries godoc
// @Summary List all ledger entries
// @Tags Ledger
// @Produce json
// @Success 200 {array} map[string]any
// @Router /api/tasks [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		log.Errorf("failed to list ledger entries: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to fetch entries", "")
		return
	}
	dtos := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, EntryToDTO(entry))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetAggregated godoc
// @Summary Monthly limits versus spending
// @Description JSON by default, CSV when the client sends Accept: text/csv
// @Tags Ledger
// @Produce json,text/csv
// @Success 200 {array} MonthSummaryDTO
// @Router /api/aggregated-tasks [get]
func (h *Handler) GetAggregated(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Aggregate(r.Context())
	if err != nil {
		log.Errorf("failed to aggregate ledger entries: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Failed to aggregate entries", "")
		return
	}

	if r.Header.Get("Accept") == "text/csv" {
		csv, err := h.csvRenderer.RenderSummaries(summaries)
		if err != nil {
			rest.WriteError(w, http.StatusInternalServerError, "Failed to render CSV", "")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			log.Errorf("failed to write csv response: %v", err)
		}
		return
	}

	dtos := make([]MonthSummaryDTO, 0, len(summaries))
	for _, summary := range summaries {
		dtos = append(dtos, h.summaryToDTO(summary))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// UpdateExpenses godoc
// @Summary Overwrite category expenses of one entry
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/tasks/{id} [put]
func (h *Handler) UpdateExpenses(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	expenses, err := DecodeExpenseData(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	entry, err := h.service.SetExpenses(r.Context(), id, expenses)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, EntryToDTO(entry))
}

// DeleteEntry godoc
// @Summary Delete one entry
// @Tags Ledger
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} DeleteResultDTO
// @Failure 400 {object} rest.ErrorResponse
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/tasks/{id} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, DeleteResultDTO{DeletedCount: 1})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		rest.WriteError(w, http.StatusBadRequest, "Invalid entry id", err.Error())
	case errors.Is(err, ErrNotFound):
		rest.WriteError(w, http.StatusNotFound, "Entry not found", "")
	case errors.Is(err, ErrNoOpUpdate):
		rest.WriteError(w, http.StatusBadRequest, "No fields were updated", "")
	default:
		log.Errorf("ledger entry %s: %v", id, err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

// EntryToDTO returns the entry in its stored document shape, including _id.
func EntryToDTO(entry Entry) map[string]any {
	doc := entryToDocument(entry)
	doc[docstore.IDField] = entry.ID
	return doc
}

func (h *Handler) summaryToDTO(summary MonthSummary) MonthSummaryDTO {
	expense := func(name string) float64 {
		return summary.CategoryExpenses[name].InexactFloat64()
	}
	return MonthSummaryDTO{
		Month:                 summary.Month,
		TotalLimit:            h.formatter.Format(summary.TotalLimit),
		TotalExpense:          summary.TotalExpense.InexactFloat64(),
		GroceriesExpense:      expense(Groceries),
		TransportationExpense: expense(Transportation),
		HealthcareExpense:     expense(Healthcare),
		UtilityExpense:        expense(Utility),
		CharityExpense:        expense(Charity),
		MiscellaneousExpense:  expense(Miscellaneous),
	}
}
