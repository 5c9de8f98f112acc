package handlers

import (
	"net/http"
	"time"

	"jukebox/internal/models"
	"jukebox/internal/response"
	"jukebox/internal/storage"

	"github.com/gin-gonic/gin"
)

// UserSubmissionItem represents a single submission with room details
type UserSubmissionItem struct {
	EntryID     uint   `json:"entry_id"`
	RoomID      uint   `json:"room_id"`
	RoomName    string `json:"room_name"`
	MediaRef    string `json:"media_ref"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	DurationSec int64  `json:"duration_sec"`
	CreatedAt   string `json:"created_at"`
}

// GetUserSubmissionsHandler godoc
// @Summary		Получение списка своих заявок
// @Description	Получение заявок пользователя по всем комнатам
// @Tags			profile
// @Accept			json
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		UserSubmissionItem	"List of the user's submissions"
// @Failure		500	{object}	response.ErrorResponse	"Server error (DB_ERROR)"
// @Router			/profile/submissions [get]
func GetUserSubmissionsHandler(c *gin.Context) {
	userID := c.GetUint("userID")

	// Get all submissions for the user
	var entries []models.QueueEntry
	if err := storage.DB.
		Where("submitted_by = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Error fetching user submissions",
			Details: err.Error(),
		})
		return
	}

	if len(entries) == 0 {
		c.JSON(http.StatusOK, []UserSubmissionItem{})
		return
	}

	// Extract room IDs
	var roomIDs []uint
	for _, entry := range entries {
		roomIDs = append(roomIDs, entry.RoomID)
	}

	// Get room details
	var rooms []models.Room
	if err := storage.DB.
		Where("id IN ?", roomIDs).
		Find(&rooms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Error fetching room details",
			Details: err.Error(),
		})
		return
	}

	// Create a map for quick lookup
	roomMap := make(map[uint]models.Room)
	for _, r := range rooms {
		roomMap[r.ID] = r
	}

	// Build response
	var result []UserSubmissionItem
	for _, entry := range entries {
		room, roomExists := roomMap[entry.RoomID]
		if !roomExists {
			continue
		}

		item := UserSubmissionItem{
			EntryID:     entry.ID,
			RoomID:      room.ID,
			RoomName:    room.Name,
			MediaRef:    entry.MediaRef,
			Title:       entry.Title,
			Status:      entry.Status,
			DurationSec: entry.DurationSec,
			CreatedAt:   entry.CreatedAt.Format(time.RFC3339),
		}

		result = append(result, item)
	}

	c.JSON(http.StatusOK, result)
}
