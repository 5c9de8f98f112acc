package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"jukebox/internal/jukebox"
	"jukebox/internal/models"
	"jukebox/internal/response"

	"github.com/gin-gonic/gin"
)

type SubmitTrackRequest struct {
	URL string `json:"url" binding:"required"`
}

// QueueEntryResponse описывает запись очереди в ответах API.
type QueueEntryResponse struct {
	EntryID     uint   `json:"entry_id"`
	RoomID      uint   `json:"room_id"`
	SubmittedBy uint   `json:"submitted_by"`
	Name        string `json:"name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	MediaRef    string `json:"media_ref"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	DurationSec int64  `json:"duration_sec"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toEntryResponse(entry models.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		EntryID:     entry.ID,
		RoomID:      entry.RoomID,
		SubmittedBy: entry.SubmittedBy,
		Name:        entry.User.Name,
		Surname:     entry.User.Surname,
		MediaRef:    entry.MediaRef,
		Title:       entry.Title,
		Thumbnail:   entry.Thumbnail,
		DurationSec: entry.DurationSec,
		Status:      entry.Status,
		CreatedAt:   entry.CreatedAt.Format(time.RFC3339),
	}
}

// respondCoordinatorError переводит ошибки координатора в коды API.
func respondCoordinatorError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jukebox.ErrSubmissionRejected):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "SUBMISSION_REJECTED",
			Message: "Заявка отклонена",
			Details: err.Error(),
		})
	case errors.Is(err, jukebox.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "NOT_AUTHORIZED",
			Message: "Недостаточно прав для операции",
		})
	case errors.Is(err, jukebox.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ROOM_NOT_FOUND",
			Message: "Комната не найдена",
		})
	case errors.Is(err, jukebox.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Запись очереди не найдена",
		})
	case errors.Is(err, jukebox.ErrEntryFinished):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "ENTRY_FINISHED",
			Message: "Запись уже завершена, удалить её нельзя",
		})
	case errors.Is(err, jukebox.ErrCoordination):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "COORDINATION_ERROR",
			Message: "Состояние очереди изменилось, обновите данные и повторите",
			Details: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при работе с очередью",
			Details: err.Error(),
		})
	}
}

// SubmitTrackHandler обрабатывает заявку трека в очередь
// @Summary		Заявка трека
// @Description	Разрешает ссылку на YouTube и ставит трек в конец очереди комнаты
// @Tags			jukebox
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"ID комнаты"
// @Param			track	body		SubmitTrackRequest	true	"Ссылка на видео"
// @Security		BearerAuth
// @Success		201	{object}	QueueEntryResponse	"Запись поставлена в очередь"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, INVALID_ROOM_ID) или заявка отклонена (SUBMISSION_REJECTED)"
// @Failure		404	{object}	response.ErrorResponse	"Комната не найдена (ROOM_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rooms/{id}/jukebox [post]
func SubmitTrackHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	var req SubmitTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := jukebox.Submit(uint(roomID), c.GetUint("userID"), req.URL)
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toEntryResponse(*entry))
}

// AdvanceQueueHandler обрабатывает переключение на следующий трек
// @Summary		Следующий трек
// @Description	Завершает текущий трек и запускает следующий в порядке подачи
// @Tags			jukebox
// @Produce		json
// @Param			id	path		string	true	"ID комнаты"
// @Security		BearerAuth
// @Success		200	{object}	response.SwaggerAdvanceResponse	"Новый играющий трек (entry: null, если очередь пуста)"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID)"
// @Failure		409	{object}	response.ErrorResponse	"Конфликт переключения (COORDINATION_ERROR)"
// @Router			/api/rooms/{id}/jukebox/advance [post]
func AdvanceQueueHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	entry, err := jukebox.Advance(uint(roomID))
	if err != nil {
		respondCoordinatorError(c, err)
		return
	}

	// Форма ответа одинаковая в обоих случаях, клиент смотрит только на entry.
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"entry": nil, "message": "Очередь пуста"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(*entry)})
}

// RemoveEntryHandler обрабатывает удаление записи из очереди
// @Summary		Удаление записи
// @Description	Автор снимает свою заявку, преподаватель — любую незавершённую
// @Tags			jukebox
// @Produce		json
// @Param			id		path		string	true	"ID комнаты"
// @Param			entryID	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Запись удалена"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID, INVALID_ENTRY_ID) или запись завершена (ENTRY_FINISHED)"
// @Failure		403	{object}	response.ErrorResponse	"Недостаточно прав (NOT_AUTHORIZED)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Router			/api/rooms/{id}/jukebox/{entryID} [delete]
func RemoveEntryHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	entryID, err := strconv.Atoi(c.Param("entryID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ENTRY_ID",
			Message: "Неверный идентификатор записи",
		})
		return
	}

	if err := jukebox.Remove(uint(roomID), uint(entryID), c.GetUint("userID"), c.GetString("role")); err != nil {
		respondCoordinatorError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Запись убрана из очереди"})
}

// GetQueueHandler обрабатывает запрос состояния очереди
// @Summary		Состояние очереди
// @Description	Играющий трек первым, дальше ожидающие в порядке подачи
// @Tags			jukebox
// @Produce		json
// @Param			id	path		string	true	"ID комнаты"
// @Security		BearerAuth
// @Success		200	{array}		QueueEntryResponse	"Очередь комнаты"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rooms/{id}/jukebox [get]
func GetQueueHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	entries, err := jukebox.ListQueue(uint(roomID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки очереди",
			Details: err.Error(),
		})
		return
	}

	result := make([]QueueEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, toEntryResponse(entry))
	}
	c.JSON(http.StatusOK, result)
}

// GetNowPlayingHandler обрабатывает запрос текущего трека
// @Summary		Текущий трек
// @Description	Возвращает играющий трек и сколько секунд он уже играет
// @Tags			jukebox
// @Produce		json
// @Param			id	path		string	true	"ID комнаты"
// @Security		BearerAuth
// @Success		200	{object}	response.SwaggerNowPlayingResponse	"Текущий трек (state: idle, если ничего не играет)"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rooms/{id}/jukebox/now [get]
func GetNowPlayingHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	entry, err := jukebox.NowPlaying(uint(roomID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки текущего трека",
			Details: err.Error(),
		})
		return
	}

	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"state": "idle", "entry": nil, "player_time": 0})
		return
	}

	var playerTime int64
	if entry.StartedAt != nil {
		playerTime = int64(time.Since(*entry.StartedAt).Seconds())
	}

	c.JSON(http.StatusOK, gin.H{
		"state":       "playing",
		"entry":       toEntryResponse(*entry),
		"player_time": playerTime,
	})
}
