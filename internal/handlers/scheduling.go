package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"librarycore/internal/services"
)

// queryTime parses an RFC 3339 query parameter, falling back to def.
func queryTime(c *gin.Context, key string, def time.Time) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected an RFC 3339 timestamp", "field": key})
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ─── Study Rooms ──────────────────────────────────────────────────────────────

func (h *LibraryHandler) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	room, err := h.svc.Catalog.CreateStudyRoom(c.Request.Context(), req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *LibraryHandler) roomAvailability(c *gin.Context) {
	roomID, ok := pathID(c, "room")
	if !ok {
		return
	}
	at, ok := queryTime(c, "at", h.now())
	if !ok {
		return
	}

	free, err := h.svc.Scheduling.RoomAvailableAt(c.Request.Context(), roomID, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "at": at, "available": free})
}

func (h *LibraryHandler) listRoomReservations(c *gin.Context) {
	roomID, ok := pathID(c, "room")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from", h.now())
	if !ok {
		return
	}
	to, ok := queryTime(c, "to", from.AddDate(0, 0, 7))
	if !ok {
		return
	}

	list, err := h.svc.Scheduling.ListRoomReservations(c.Request.Context(), roomID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *LibraryHandler) reserveRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room")
	if !ok {
		return
	}
	var req reserveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svc.Scheduling.ReserveRoom(c.Request.Context(), actorFrom(c), services.ReserveRoomRequest{
		RoomID:    roomID,
		Start:     req.Start.UTC(),
		End:       req.End.UTC(),
		GroupSize: req.GroupSize,
		Topic:     req.Topic,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *LibraryHandler) cancelReservation(c *gin.Context) {
	reservationID, ok := pathID(c, "reservation")
	if !ok {
		return
	}

	if err := h.svc.Scheduling.CancelReservation(c.Request.Context(), actorFrom(c), reservationID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (h *LibraryHandler) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	event, err := h.svc.Catalog.CreateEvent(c.Request.Context(), services.NewEvent{
		Name:             req.Name,
		Start:            req.Start.UTC(),
		End:              req.End.UTC(),
		AttendeeCapacity: req.AttendeeCapacity,
		Type:             req.Type,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *LibraryHandler) registerForEvent(c *gin.Context) {
	eventID, ok := pathID(c, "event")
	if !ok {
		return
	}

	a, err := h.svc.Scheduling.RegisterForEvent(c.Request.Context(), actorFrom(c), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *LibraryHandler) unregisterFromEvent(c *gin.Context) {
	eventID, ok := pathID(c, "event")
	if !ok {
		return
	}

	outcome, err := h.svc.Scheduling.UnregisterFromEvent(c.Request.Context(), actorFrom(c), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": eventID, "outcome": outcome})
}

func (h *LibraryHandler) registerSpeaker(c *gin.Context) {
	eventID, ok := pathID(c, "event")
	if !ok {
		return
	}

	a, err := h.svc.Scheduling.RegisterAuthorForSeminar(c.Request.Context(), actorFrom(c), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}
