package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tablewise/backend/internal/cache"
	"github.com/tablewise/backend/internal/db"
	"github.com/tablewise/backend/internal/models"
	"github.com/tablewise/backend/internal/queue"
	"github.com/tablewise/backend/internal/service"
)

// Aggregator is the analytics entry point the HTTP layer depends on.
type Aggregator interface {
	Aggregate(ctx context.Context, query models.MetricsQuery) (models.AggregatedMetrics, error)
}

type Handler struct {
	Store     *db.Store
	Analytics Aggregator
	Cache     cache.Cache
	Publisher *queue.Publisher
	Validator *validator.Validate
	Logger    zerolog.Logger
	AdminKey  string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Cross-location aggregated metrics
// @Description Timezone-correct daily rollup plus derived insights for a set of locations over a UTC window
// @Tags analytics
// @Produce json
// @Param location_ids query string true "comma-separated location ids"
// @Param start query string true "window start (RFC3339 or YYYY-MM-DD)"
// @Param end query string true "window end, exclusive (RFC3339) or inclusive day (YYYY-MM-DD)"
// @Success 200 {object} models.AggregatedMetrics
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Failure 504 {object} map[string]any
// @Router /api/analytics [get]
func (h *Handler) AnalyticsQuery(c *gin.Context) {
	idsParam := strings.TrimSpace(c.Query("location_ids"))
	if idsParam == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "location_ids is required", nil)
		return
	}
	var ids []string
	for _, id := range strings.Split(idsParam, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "location_ids is required", nil)
		return
	}

	start, err := parseWindowBound(c.Query("start"), false)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid start date", err.Error())
		return
	}
	end, err := parseWindowBound(c.Query("end"), true)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid end date", err.Error())
		return
	}
	if !end.After(start) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "end must be after start", nil)
		return
	}

	result, err := h.Analytics.Aggregate(c.Request.Context(), models.MetricsQuery{
		LocationIDs: ids,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		var fetchErr *service.FetchError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(c, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "Aggregation timed out", err.Error())
		case errors.As(err, &fetchErr):
			writeError(c, http.StatusBadGateway, "LOCATION_FETCH_FAILED",
				fmt.Sprintf("Failed to fetch metrics for location %s", fetchErr.LocationID), err.Error())
		default:
			writeError(c, http.StatusInternalServerError, "AGGREGATION_ERROR", "Aggregation failed", err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// parseWindowBound accepts RFC3339 instants or bare dates. A bare end date is
// inclusive: it extends to the following midnight so the [start, end) window
// covers the whole named day, matching what a dashboard date picker means.
func parseWindowBound(value string, isEnd bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("missing value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if isEnd {
		t = t.AddDate(0, 0, 1)
	}
	return t.UTC(), nil
}

// @Summary List locations
// @Tags locations
// @Produce json
// @Success 200 {array} models.Location
// @Router /api/locations [get]
func (h *Handler) LocationsList(c *gin.Context) {
	locations, err := h.Store.ListLocations(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list locations", err.Error())
		return
	}
	if locations == nil {
		locations = []models.Location{}
	}
	c.JSON(http.StatusOK, locations)
}

type CreateReservationRequest struct {
	GuestID            string  `json:"guestId" validate:"required"`
	LocationID         string  `json:"locationId" validate:"required"`
	TableID            string  `json:"tableId"`
	Timestamp          string  `json:"timestamp" validate:"required"`
	PartySize          int     `json:"partySize" validate:"required,gt=0"`
	Notes              string  `json:"notes"`
	EstimatedRevenue   float64 `json:"estimatedRevenue" validate:"gte=0"`
	PreviousLocationID string  `json:"previousLocationId"`
}

// @Summary Create a reservation
// @Tags reservations
// @Accept json
// @Produce json
// @Success 201 {object} models.Reservation
// @Failure 400 {object} map[string]any
// @Router /api/reservations [post]
func (h *Handler) ReservationCreate(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "timestamp must be RFC3339", err.Error())
		return
	}

	r := models.Reservation{
		ID:                 fmt.Sprintf("res_%d", time.Now().UnixNano()),
		GuestID:            req.GuestID,
		LocationID:         req.LocationID,
		TableID:            req.TableID,
		Timestamp:          ts.UTC().Format(time.RFC3339),
		PartySize:          req.PartySize,
		Status:             models.StatusPending,
		Notes:              req.Notes,
		EstimatedRevenue:   req.EstimatedRevenue,
		PreviousLocationID: req.PreviousLocationID,
	}
	if err := h.Store.InsertReservation(c.Request.Context(), r, ts); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create reservation", err.Error())
		return
	}

	h.afterMutation(c.Request.Context(), queue.ReservationEvent{
		Type:          queue.EventReservationCreated,
		ReservationID: r.ID,
		LocationID:    r.LocationID,
		Status:        r.Status,
		OccurredAt:    time.Now().UTC(),
	})
	c.JSON(http.StatusCreated, r)
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// @Summary Update reservation status
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "reservation id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/reservations/{id}/status [patch]
func (h *Handler) ReservationUpdateStatus(c *gin.Context) {
	id := c.Param("id")
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !models.ValidStatus(req.Status) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status", req.Status)
		return
	}

	if err := h.Store.UpdateReservationStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update status", err.Error())
		return
	}

	h.afterMutation(c.Request.Context(), queue.ReservationEvent{
		Type:          queue.EventStatusChanged,
		ReservationID: id,
		Status:        req.Status,
		OccurredAt:    time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CreateWalkInRequest struct {
	LocationID string `json:"locationId" validate:"required"`
	TableID    string `json:"tableId"`
	Timestamp  string `json:"timestamp" validate:"required"`
	PartySize  int    `json:"partySize" validate:"required,gt=0"`
	GuestID    string `json:"guestId"`
}

// @Summary Record a walk-in
// @Tags walk-ins
// @Accept json
// @Produce json
// @Success 201 {object} models.WalkIn
// @Failure 400 {object} map[string]any
// @Router /api/walk-ins [post]
func (h *Handler) WalkInCreate(c *gin.Context) {
	var req CreateWalkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "timestamp must be RFC3339", err.Error())
		return
	}

	w := models.WalkIn{
		ID:         fmt.Sprintf("walkin_%d", time.Now().UnixNano()),
		LocationID: req.LocationID,
		TableID:    req.TableID,
		Timestamp:  ts.UTC().Format(time.RFC3339),
		PartySize:  req.PartySize,
		GuestID:    req.GuestID,
	}
	if err := h.Store.InsertWalkIn(c.Request.Context(), w, ts); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to record walk-in", err.Error())
		return
	}

	h.afterMutation(c.Request.Context(), queue.ReservationEvent{
		Type:       queue.EventWalkInCreated,
		LocationID: w.LocationID,
		OccurredAt: time.Now().UTC(),
	})
	c.JSON(http.StatusCreated, w)
}

// afterMutation keeps cached rollups honest: the local cache is invalidated
// synchronously, then the event is published so other replicas follow.
func (h *Handler) afterMutation(ctx context.Context, event queue.ReservationEvent) {
	if h.Cache != nil {
		h.Cache.Invalidate(ctx)
	}
	if h.Publisher != nil {
		_ = h.Publisher.Publish(ctx, event)
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

type ImportSummary struct {
	Locations struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"locations"`
	Reservations struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"reservations"`
	WalkIns struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"walk_ins"`
	Errors []string `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload locations, reservations, and walk-ins CSV files; replaces existing data
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param locations formData file true "locations.csv"
// @Param reservations formData file true "reservations.csv"
// @Param walk_ins formData file false "walk_ins.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	locationsFile, err := c.FormFile("locations")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "locations file required", nil)
		return
	}
	reservationsFile, err := c.FormFile("reservations")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "reservations file required", nil)
		return
	}
	walkInsFile, _ := c.FormFile("walk_ins")

	if !validateExt(locationsFile.Filename) || !validateExt(reservationsFile.Filename) ||
		(walkInsFile != nil && !validateExt(walkInsFile.Filename)) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}

	locations, errs := parseLocationsCSV(locationsFile)
	summary.Locations.Parsed = len(locations)
	summary.Locations.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	reservations, errs := parseReservationsCSV(reservationsFile)
	summary.Reservations.Parsed = len(reservations)
	summary.Reservations.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	var walkIns []models.WalkIn
	if walkInsFile != nil {
		walkIns, errs = parseWalkInsCSV(walkInsFile)
		summary.WalkIns.Parsed = len(walkIns)
		summary.WalkIns.Errors = len(errs)
		summary.Errors = append(summary.Errors, errs...)
	}

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.ResetData(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}
	n, err := h.Store.InsertLocations(ctx, locations)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert locations", err.Error())
		return
	}
	summary.Locations.Inserted = int(n)

	n, err = h.Store.InsertReservations(ctx, reservations)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert reservations", err.Error())
		return
	}
	summary.Reservations.Inserted = int(n)

	if len(walkIns) > 0 {
		n, err = h.Store.InsertWalkIns(ctx, walkIns)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert walk-ins", err.Error())
			return
		}
		summary.WalkIns.Inserted = int(n)
	}

	h.afterMutation(ctx, queue.ReservationEvent{
		Type:       queue.EventDataImported,
		OccurredAt: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, summary)
}

func validateExt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}

func parseLocationsCSV(file *multipart.FileHeader) ([]models.Location, []string) {
	rows, header, errs := readCSV(file, []string{"id", "name", "timezone"})
	if rows == nil {
		return nil, errs
	}
	var out []models.Location
	for i, row := range rows {
		id := field(row, header, "id")
		if id == "" {
			errs = append(errs, fmt.Sprintf("locations row %d: missing id", i+2))
			continue
		}
		tz := field(row, header, "timezone")
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Sprintf("locations row %d: invalid timezone %q", i+2, tz))
			continue
		}
		out = append(out, models.Location{
			ID:       id,
			Name:     field(row, header, "name"),
			Address:  field(row, header, "address"),
			Timezone: tz,
		})
	}
	return out, errs
}

func parseReservationsCSV(file *multipart.FileHeader) ([]models.Reservation, []string) {
	rows, header, errs := readCSV(file, []string{"id", "guest_id", "location_id", "timestamp", "party_size", "status"})
	if rows == nil {
		return nil, errs
	}
	var out []models.Reservation
	for i, row := range rows {
		r := models.Reservation{
			ID:                 field(row, header, "id"),
			GuestID:            field(row, header, "guest_id"),
			LocationID:         field(row, header, "location_id"),
			TableID:            field(row, header, "table_id"),
			Timestamp:          field(row, header, "timestamp"),
			Status:             field(row, header, "status"),
			Notes:              field(row, header, "notes"),
			PreviousLocationID: field(row, header, "previous_location_id"),
		}
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("reservations row %d: missing id", i+2))
			continue
		}
		if _, err := time.Parse(time.RFC3339, r.Timestamp); err != nil {
			errs = append(errs, fmt.Sprintf("reservations row %d: invalid timestamp %q", i+2, r.Timestamp))
			continue
		}
		if !models.ValidStatus(r.Status) {
			errs = append(errs, fmt.Sprintf("reservations row %d: unknown status %q", i+2, r.Status))
			continue
		}
		size, err := strconv.Atoi(field(row, header, "party_size"))
		if err != nil || size <= 0 {
			errs = append(errs, fmt.Sprintf("reservations row %d: invalid party_size", i+2))
			continue
		}
		r.PartySize = size
		if rev := field(row, header, "estimated_revenue"); rev != "" {
			v, err := strconv.ParseFloat(rev, 64)
			if err != nil || v < 0 {
				errs = append(errs, fmt.Sprintf("reservations row %d: invalid estimated_revenue", i+2))
				continue
			}
			r.EstimatedRevenue = v
		}
		out = append(out, r)
	}
	return out, errs
}

func parseWalkInsCSV(file *multipart.FileHeader) ([]models.WalkIn, []string) {
	rows, header, errs := readCSV(file, []string{"id", "location_id", "timestamp", "party_size"})
	if rows == nil {
		return nil, errs
	}
	var out []models.WalkIn
	for i, row := range rows {
		w := models.WalkIn{
			ID:         field(row, header, "id"),
			LocationID: field(row, header, "location_id"),
			TableID:    field(row, header, "table_id"),
			Timestamp:  field(row, header, "timestamp"),
			GuestID:    field(row, header, "guest_id"),
		}
		if w.ID == "" {
			errs = append(errs, fmt.Sprintf("walk_ins row %d: missing id", i+2))
			continue
		}
		if _, err := time.Parse(time.RFC3339, w.Timestamp); err != nil {
			errs = append(errs, fmt.Sprintf("walk_ins row %d: invalid timestamp %q", i+2, w.Timestamp))
			continue
		}
		size, err := strconv.Atoi(field(row, header, "party_size"))
		if err != nil || size <= 0 {
			errs = append(errs, fmt.Sprintf("walk_ins row %d: invalid party_size", i+2))
			continue
		}
		w.PartySize = size
		out = append(out, w)
	}
	return out, errs
}

// readCSV loads a CSV file into rows plus a column-name index, verifying the
// required columns exist. Optional columns simply resolve to "".
func readCSV(file *multipart.FileHeader, required []string) ([][]string, map[string]int, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		return nil, nil, []string{fmt.Sprintf("%s: cannot read header: %v", file.Filename, err)}
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range required {
		if _, ok := header[col]; !ok {
			return nil, nil, []string{fmt.Sprintf("%s: missing required column %q", file.Filename, col)}
		}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, []string{fmt.Sprintf("%s: %v", file.Filename, err)}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func field(row []string, header map[string]int, name string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
