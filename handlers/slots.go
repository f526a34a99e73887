package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/models"
)

type createSlotRequest struct {
	SlotDate    string   `json:"slot_date" validate:"required"`
	TimeLabel   string   `json:"time_label"`
	TimeLabels  []string `json:"time_labels"`
	MaxCapacity int      `json:"max_capacity" validate:"omitempty,min=1,max=50"`
}

type updateSlotRequest struct {
	SlotDate    string `json:"slot_date" validate:"required"`
	TimeLabel   string `json:"time_label" validate:"required"`
	MaxCapacity int    `json:"max_capacity" validate:"required,min=1,max=50"`
}

// CreateSlot opens one slot, or a batch when time_labels is given. Batch
// creation reports which labels were skipped and why instead of failing the
// whole request.
func CreateSlot(c *fiber.Ctx) error {
	var req createSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeSlotErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeSlotErr, "validation failed: "+err.Error())
	}

	if len(req.TimeLabels) > 0 {
		created, skipped, err := engine.CreateSlotsBulk(c.Context(), req.SlotDate, req.TimeLabels, req.MaxCapacity)
		if err != nil {
			return failEngine(c, CodeSlotErr, err)
		}
		middleware.LogCustomEvent(models.LogLevelSuccess, "slots created",
			currentUserEmail(c), currentUserRole(c), map[string]interface{}{
				"slot_date": req.SlotDate,
				"created":   len(created),
				"skipped":   len(skipped),
			})
		return ok(c, 201, CodeSlotOK, fiber.Map{
			"created": created,
			"skipped": skipped,
		})
	}

	if req.TimeLabel == "" {
		return fail(c, 400, CodeSlotErr, "time_label or time_labels is required")
	}

	slot, err := engine.CreateSlot(c.Context(), req.SlotDate, req.TimeLabel, req.MaxCapacity)
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "slot created",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_slot": slot.ID,
			"slot":    slot.Key().String(),
		})
	return ok(c, 201, CodeSlotOK, slot)
}

// ListSlots returns bookable slots, today onward. Lapsed slots are retired
// before the listing so students never see a slot whose time has passed.
func ListSlots(c *fiber.Ctx) error {
	if date := c.Query("date"); date != "" {
		slots, err := engine.ListForDate(c.Context(), date)
		if err != nil {
			return failEngine(c, CodeSlotErr, err)
		}
		return ok(c, 200, CodeSlotOK, slots)
	}

	slots, err := engine.ListActive(c.Context(), "")
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}
	return ok(c, 200, CodeSlotOK, slots)
}

// ListSlotsAdmin returns every slot with counts recomputed from appointment
// rows, for the staff dashboard.
func ListSlotsAdmin(c *fiber.Ctx) error {
	rows, err := engine.ListWithLiveCounts(c.Context())
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}
	return ok(c, 200, CodeSlotOK, rows)
}

// GetSlot returns one slot by id.
func GetSlot(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeSlotErr, "invalid slot id")
	}

	slot, err := engine.GetSlot(c.Context(), id)
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}
	return ok(c, 200, CodeSlotOK, slot)
}

// UpdateSlot changes a slot's date, time or capacity.
func UpdateSlot(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeSlotErr, "invalid slot id")
	}

	var req updateSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeSlotErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeSlotErr, "validation failed: "+err.Error())
	}

	slot, err := engine.UpdateSlot(c.Context(), id, req.SlotDate, req.TimeLabel, req.MaxCapacity)
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "slot updated",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{"id_slot": slot.ID})
	return ok(c, 200, CodeSlotOK, slot)
}

// ToggleSlot flips a slot between open and closed. Closing retires the slot:
// approved appointments on it are completed.
func ToggleSlot(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeSlotErr, "invalid slot id")
	}

	slot, err := engine.ToggleSlot(c.Context(), id)
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelInfo, "slot toggled",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{
			"id_slot": slot.ID,
			"active":  slot.Active,
		})
	return ok(c, 200, CodeSlotOK, slot)
}

// DeleteSlot removes a slot that no appointment has ever referenced.
func DeleteSlot(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeSlotErr, "invalid slot id")
	}

	if err := engine.DeleteSlot(c.Context(), id); err != nil {
		return failEngine(c, CodeSlotErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelInfo, "slot deleted",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{"id_slot": id})
	return ok(c, 200, CodeSlotOK, fiber.Map{"message": "slot deleted"})
}

// ListSlotApproved returns the approved appointments booked on one slot, for
// the counselor's session roster.
func ListSlotApproved(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return fail(c, 400, CodeSlotErr, "invalid slot id")
	}

	slot, err := engine.GetSlot(c.Context(), id)
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}
	appts, err := engine.ApprovedForSlot(c.Context(), slot.Key())
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}
	return ok(c, 200, CodeSlotOK, appts)
}

// ResyncSlotCounts recomputes every slot's cached count from appointment rows.
func ResyncSlotCounts(c *fiber.Ctx) error {
	changed, err := engine.ResyncAll(c.Context())
	if err != nil {
		return failEngine(c, CodeSlotErr, err)
	}

	middleware.LogCustomEvent(models.LogLevelInfo, "slot counts resynced",
		currentUserEmail(c), currentUserRole(c), map[string]interface{}{"changed": changed})
	return ok(c, 200, CodeSlotOK, fiber.Map{"changed": changed})
}
