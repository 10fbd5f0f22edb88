package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
)

func (h *Handler) CreateTrade(c *fiber.Ctx) error {
	var req CreateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	trade, err := h.trades.Create(c.UserContext(), principal(c), service.CreateTradeInput{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		EntryPrice: req.EntryPrice,
		EntryDate:  req.EntryDate,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(trade)
}

func (h *Handler) ListTrades(c *fiber.Ctx) error {
	page, err := h.trades.List(c.UserContext(), principal(c), service.ListTradesQuery{
		Skip:   c.QueryInt("skip", 0),
		Limit:  c.QueryInt("limit", service.DefaultPageLimit),
		Status: domain.TradeStatus(c.Query("status")),
		Symbol: c.Query("symbol"),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handler) GetTrade(c *fiber.Ctx) error {
	id, err := tradeID(c)
	if err != nil {
		return err
	}

	trade, err := h.trades.Get(c.UserContext(), principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(trade)
}

func (h *Handler) UpdateTrade(c *fiber.Ctx) error {
	id, err := tradeID(c)
	if err != nil {
		return err
	}

	var req UpdateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	trade, err := h.trades.Update(c.UserContext(), principal(c), id, req.toUpdate())
	if err != nil {
		return err
	}
	return c.JSON(trade)
}

func (h *Handler) CloseTrade(c *fiber.Ctx) error {
	id, err := tradeID(c)
	if err != nil {
		return err
	}

	var req CloseTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if req.ExitPrice == nil {
		return domain.Invalid("exit_price", "is required")
	}

	trade, err := h.trades.Close(c.UserContext(), principal(c), id, *req.ExitPrice, req.ExitDate)
	if err != nil {
		return err
	}
	return c.JSON(trade)
}

func (h *Handler) DeleteTrade(c *fiber.Ctx) error {
	id, err := tradeID(c)
	if err != nil {
		return err
	}

	if err := h.trades.Delete(c.UserContext(), principal(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ImportTrades loads a multipart CSV upload in the "file" field.
func (h *Handler) ImportTrades(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return domain.Invalid("file", "is required")
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	result, err := h.ingestion.Import(c.UserContext(), principal(c), file)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) ExportTrades(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.ingestion.Export(c.UserContext(), principal(c), &buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("trades-%s.csv", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
