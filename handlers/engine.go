package handlers

import (
	"github.com/campusworks/guidance-backend/scheduling"
)

var engine *scheduling.Engine

// SetEngine installs the scheduling engine used by the slot, appointment and
// pass handlers. Called once from main before the server starts.
func SetEngine(e *scheduling.Engine) {
	engine = e
}
