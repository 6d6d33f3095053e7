package server

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"neofeed/frame"
	"neofeed/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const defaultLimit = 50

// ResponseReader is the read side of the response store
type ResponseReader interface {
	QueryByStartDate(ctx context.Context, date string, limit int) ([]models.StoredResponse, error)
	All(ctx context.Context, limit int) ([]models.StoredResponse, error)
	Count(ctx context.Context) (int64, error)
}

type ServerConfig struct {
	Reader ResponseReader
}

// storedFeed is a stored row with its body decoded into object views
type storedFeed struct {
	ID        int64              `json:"id"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Elements  int                `json:"elementCount"`
	Objects   []frame.ObjectView `json:"objects"`
	Error     string             `json:"error,omitempty"`
}

// Server returns a fiber.App serving stored feed responses and metrics
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/api/stats", func(c *fiber.Ctx) error {
		count, err := config.Reader.Count(c.UserContext())
		if err != nil {
			log.WithError(err).Error("Error counting responses")
			return c.Status(500).SendString("Error counting responses")
		}
		return c.JSON(fiber.Map{"responses": count})
	})

	app.Get("/api/responses", func(c *fiber.Ctx) error {
		rows, err := queryRows(c, config.Reader)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	})

	app.Get("/api/responses/feed", func(c *fiber.Ctx) error {
		rows, err := queryRows(c, config.Reader)
		if err != nil {
			return err
		}
		return c.JSON(lo.Map(rows, func(row models.StoredResponse, _ int) storedFeed {
			return decodeRow(row)
		}))
	})

	return app
}

func queryRows(c *fiber.Ctx, reader ResponseReader) ([]models.StoredResponse, error) {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid limit")
	}

	startDate := c.Query("start_date", "")
	if startDate == "" {
		rows, err := reader.All(c.UserContext(), limit)
		if err != nil {
			log.WithError(err).Error("Error listing responses")
			return nil, fiber.NewError(fiber.StatusInternalServerError, "Error listing responses")
		}
		return rows, nil
	}

	if _, err := models.ParseDate(startDate); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD")
	}

	rows, err := reader.QueryByStartDate(c.UserContext(), startDate, limit)
	if err != nil {
		log.WithFields(log.Fields{
			"start_date": startDate,
			"error":      err,
		}).Error("Error querying responses")
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Error querying responses")
	}
	return rows, nil
}

func decodeRow(row models.StoredResponse) storedFeed {
	out := storedFeed{ID: row.ID, StartDate: row.StartDate, EndDate: row.EndDate, Objects: []frame.ObjectView{}}
	resp, err := models.DecodeFeedResponse([]byte(row.Response))
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Elements = resp.ElementCount
	if views := frame.Materialize(resp); views != nil {
		out.Objects = views
	}
	return out
}

// MarshalRow renders a stored row, decoded when decode is set, as one JSON line
func MarshalRow(row models.StoredResponse, decode bool) ([]byte, error) {
	if decode {
		return json.Marshal(decodeRow(row))
	}
	return json.Marshal(row)
}
