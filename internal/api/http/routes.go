package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/gym-capacity/internal/capacity"
	"github.com/i474232898/gym-capacity/internal/store"
)

var validate = validator.New()

// Reader is the read side of the capacity store.
type Reader interface {
	Load() (capacity.TimeSeries, error)
	Latest() (capacity.Snapshot, error)
	History(name string, from, to time.Time) ([]store.HistoryEntry, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reader Reader) {
	v1 := app.Group("/api/v1")

	v1.Get("/gym-data", func(c *fiber.Ctx) error {
		series, err := reader.Load()
		if errors.Is(err, capacity.ErrCorruptSeries) {
			return c.JSON(capacity.TimeSeries{})
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read capacity data")
		}
		return c.JSON(series)
	})

	v1.Get("/gym-data/latest", func(c *fiber.Ctx) error {
		snapshot, err := reader.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, capacity.ErrCorruptSeries) {
				return fiber.NewError(fiber.StatusNotFound, "no capacity data recorded yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read capacity data")
		}
		return c.JSON(snapshot)
	})

	v1.Get("/gym-data/history/:gymName", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		entries, err := reader.History(req.Name, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, capacity.ErrCorruptSeries) {
				// An unknown facility or unreadable history is an empty history.
				return c.JSON([]store.HistoryEntry{})
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read capacity history")
		}

		return c.JSON(entries)
	})
}

// historyQuery holds the parameters of the history endpoint.
type historyQuery struct {
	Name string    `validate:"required,max=200"`
	From time.Time `validate:"-"`
	To   time.Time `validate:"omitempty,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("gymName"))
	if err != nil {
		return errors.New("invalid facility name")
	}
	h.Name = name

	if s := c.Query("from"); s != "" {
		if h.From, err = parseTime(s); err != nil {
			return err
		}
	}
	if s := c.Query("to"); s != "" {
		if h.To, err = parseTime(s); err != nil {
			return err
		}
	}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
