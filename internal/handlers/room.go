package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"jukebox/internal/models"
	"jukebox/internal/response"
	"jukebox/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CreateRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

// RoomResponse описывает комнату в ответах API.
type RoomResponse struct {
	RoomID   uint   `json:"room_id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	OwnerID  uint   `json:"owner_id"`
	IsActive bool   `json:"is_active"`
}

func toRoomResponse(room models.Room) RoomResponse {
	return RoomResponse{
		RoomID:   room.ID,
		Name:     room.Name,
		Code:     room.Code,
		OwnerID:  room.OwnerID,
		IsActive: room.IsActive,
	}
}

// newRoomCode генерирует короткий код подключения на основе uuid.
func newRoomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateRoomHandler обрабатывает создание комнаты преподавателем
// @Summary		Создание комнаты
// @Description	Создаёт комнату с очередью джукбокса и кодом подключения
// @Tags			rooms
// @Accept			json
// @Produce		json
// @Param			room	body		CreateRoomRequest	true	"Данные комнаты"
// @Security		BearerAuth
// @Success		201	{object}	RoomResponse	"Созданная комната"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rooms [post]
func CreateRoomHandler(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	room := models.Room{
		Name:     req.Name,
		Code:     newRoomCode(),
		OwnerID:  c.GetUint("userID"),
		IsActive: true,
	}

	if err := storage.DB.Create(&room).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании комнаты",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, toRoomResponse(room))
}

// ListRoomsHandler обрабатывает запрос списка активных комнат
// @Summary		Список комнат
// @Description	Возвращает все активные комнаты
// @Tags			rooms
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		RoomResponse	"Список комнат"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/rooms [get]
func ListRoomsHandler(c *gin.Context) {
	var rooms []models.Room
	if err := storage.DB.Where("is_active = true").Find(&rooms).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки комнат",
			Details: err.Error(),
		})
		return
	}

	result := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, toRoomResponse(room))
	}
	c.JSON(http.StatusOK, result)
}

// GetRoomHandler обрабатывает запрос комнаты по ID
// @Summary		Получение комнаты
// @Description	Возвращает комнату по идентификатору
// @Tags			rooms
// @Produce		json
// @Param			id	path		string	true	"ID комнаты"
// @Security		BearerAuth
// @Success		200	{object}	RoomResponse	"Комната"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Комната не найдена (ROOM_NOT_FOUND)"
// @Router			/api/rooms/{id} [get]
func GetRoomHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	var room models.Room
	if err := storage.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ROOM_NOT_FOUND",
			Message: "Комната не найдена",
		})
		return
	}

	c.JSON(http.StatusOK, toRoomResponse(room))
}

// JoinRoomHandler обрабатывает подключение к комнате по коду
// @Summary		Подключение к комнате
// @Description	Находит комнату по коду, который преподаватель раздаёт ученикам
// @Tags			rooms
// @Produce		json
// @Param			code	path		string	true	"Код комнаты"
// @Security		BearerAuth
// @Success		200	{object}	RoomResponse	"Комната"
// @Failure		400	{object}	response.ErrorResponse	"Комната закрыта (ROOM_INACTIVE)"
// @Failure		404	{object}	response.ErrorResponse	"Комната не найдена (ROOM_NOT_FOUND)"
// @Router			/api/rooms/join/{code} [get]
func JoinRoomHandler(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))

	var room models.Room
	if err := storage.DB.Where("code = ?", code).First(&room).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ROOM_NOT_FOUND",
			Message: "Комната с таким кодом не найдена",
		})
		return
	}

	if !room.IsActive {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "ROOM_INACTIVE",
			Message: "Комната закрыта",
		})
		return
	}

	c.JSON(http.StatusOK, toRoomResponse(room))
}

// CloseRoomHandler обрабатывает закрытие комнаты владельцем
// @Summary		Закрытие комнаты
// @Description	Деактивирует комнату, новые заявки в очередь перестают приниматься
// @Tags			rooms
// @Produce		json
// @Param			id	path		string	true	"ID комнаты"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Комната закрыта"
// @Failure		400	{object}	response.ErrorResponse	"Неверный идентификатор (INVALID_ROOM_ID)"
// @Failure		403	{object}	response.ErrorResponse	"Не владелец комнаты (NOT_AUTHORIZED)"
// @Failure		404	{object}	response.ErrorResponse	"Комната не найдена (ROOM_NOT_FOUND)"
// @Router			/api/rooms/{id}/close [post]
func CloseRoomHandler(c *gin.Context) {
	roomID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "Неверный идентификатор комнаты",
		})
		return
	}

	var room models.Room
	if err := storage.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ROOM_NOT_FOUND",
			Message: "Комната не найдена",
		})
		return
	}

	if room.OwnerID != c.GetUint("userID") {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "NOT_AUTHORIZED",
			Message: "Закрыть комнату может только её владелец",
		})
		return
	}

	if err := storage.DB.Model(&room).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при закрытии комнаты",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Комната закрыта"})
}
