package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/recantodasaguas/reservation-api/internal/availability"
	"github.com/recantodasaguas/reservation-api/internal/model"
	"github.com/recantodasaguas/reservation-api/internal/repository"
)

// AvailabilityHandler serves the public availability check and the
// administrative block calendar.
type AvailabilityHandler struct {
	Checker *availability.Checker
	Blocks  *repository.AvailabilityRepo
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(checker *availability.Checker, blocks *repository.AvailabilityRepo) *AvailabilityHandler {
	if checker == nil || blocks == nil {
		panic("nil dependency passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Checker: checker, Blocks: blocks}
}

// Check handles GET /v1/availability.  Query parameters: date (required,
// YYYY-MM-DD), end_date (optional, for multi-night stays), type (required)
// and cabins (required for cabin types).  The response says whether a
// reservation of that shape could be placed right now; it is advisory only
// and creation re-validates under a row lock.
func (h *AvailabilityHandler) Check(c echo.Context) error {
	date, err := parseDateParam(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}
	end := date
	if raw := c.QueryParam("end_date"); raw != "" {
		end, err = parseDateParam(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
		}
	}
	resType := model.ReservationType(c.QueryParam("type"))
	if !resType.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation type"})
	}
	cabins := 0
	if raw := c.QueryParam("cabins"); raw != "" {
		cabins, err = strconv.Atoi(raw)
		if err != nil || cabins < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cabins"})
		}
	}
	decision, err := h.Checker.CheckRange(c.Request().Context(), date, end, resType, cabins)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	resp := echo.Map{"available": decision.Available}
	if !decision.Available {
		resp["reason"] = decision.Reason
	}
	return c.JSON(http.StatusOK, resp)
}

// blockRequest is the JSON body for creating or updating availability
// blocks over a date range.
type blockRequest struct {
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	DayUseAvailable  *bool  `json:"day_use_available"`
	BaptismAvailable *bool  `json:"baptism_available"`
	CabinsAvailable  *int   `json:"cabins_available"`
	Notes            string `json:"notes"`
}

// ListBlocks handles GET /v1/admin/availability.  Defaults to the next 30
// days when no range is given.
func (h *AvailabilityHandler) ListBlocks(c echo.Context) error {
	from, to, err := rangeParams(c, 30)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	blocks, err := h.Blocks.ListRange(c.Request().Context(), from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list blocks"})
	}
	items := make([]echo.Map, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, echo.Map{
			"id":                b.ID,
			"date":              b.Date.Format("2006-01-02"),
			"day_use_available": b.DayUseAvailable,
			"baptism_available": b.BaptismAvailable,
			"cabins_available":  b.CabinsAvailable,
			"notes":             b.Notes,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// UpsertBlocks handles POST /v1/admin/availability.  It writes one block
// per day over the requested range, creating missing rows and overwriting
// the flags of existing ones.  Omitted fields keep their defaults (open,
// full cabin capacity).
func (h *AvailabilityHandler) UpsertBlocks(c echo.Context) error {
	var body blockRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	start, err := parseDateParam(body.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date, expected YYYY-MM-DD"})
	}
	end := start
	if body.EndDate != "" {
		end, err = parseDateParam(body.EndDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
		}
	}
	if end.Before(start) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_date before start_date"})
	}
	if end.Sub(start) > 366*24*time.Hour {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "range too large, max one year"})
	}

	flags := model.AvailabilityBlock{
		DayUseAvailable:  true,
		BaptismAvailable: true,
		CabinsAvailable:  h.Checker.Policy.MaxCabins,
		Notes:            body.Notes,
	}
	if body.DayUseAvailable != nil {
		flags.DayUseAvailable = *body.DayUseAvailable
	}
	if body.BaptismAvailable != nil {
		flags.BaptismAvailable = *body.BaptismAvailable
	}
	if body.CabinsAvailable != nil {
		if *body.CabinsAvailable < 0 || *body.CabinsAvailable > h.Checker.Policy.MaxCabins {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cabins_available out of range"})
		}
		flags.CabinsAvailable = *body.CabinsAvailable
	}
	if err := h.Blocks.UpsertRange(c.Request().Context(), start, end, flags); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save blocks"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "blocks saved"})
}

// DeleteBlock handles DELETE /v1/admin/availability/:id.  Removing a block
// restores the day to the default open state.
func (h *AvailabilityHandler) DeleteBlock(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block id"})
	}
	if err := h.Blocks.DeleteByID(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "block not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete block"})
	}
	return c.NoContent(http.StatusNoContent)
}

func parseDateParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing date")
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return model.Midnight(t), nil
}

// rangeParams reads the from/to query parameters, defaulting to a window
// of defaultDays starting today.
func rangeParams(c echo.Context, defaultDays int) (time.Time, time.Time, error) {
	from := model.Midnight(time.Now().UTC())
	to := from.AddDate(0, 0, defaultDays)
	var err error
	if raw := c.QueryParam("from"); raw != "" {
		from, err = parseDateParam(raw)
		if err != nil {
			return from, to, errors.New("invalid from, expected YYYY-MM-DD")
		}
		to = from.AddDate(0, 0, defaultDays)
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err = parseDateParam(raw)
		if err != nil {
			return from, to, errors.New("invalid to, expected YYYY-MM-DD")
		}
	}
	if to.Before(from) {
		return from, to, errors.New("to before from")
	}
	return from, to, nil
}
