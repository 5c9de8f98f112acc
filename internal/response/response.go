package response

// SuccessResponse представляет успешный ответ API
type SuccessResponse struct {
	Message string `json:"message" example:"Операция успешно выполнена"`
}

// ErrorResponse представляет ответ с ошибкой API
type ErrorResponse struct {
	// Код ошибки для программной обработки
	// example: VALIDATION_ERROR
	Code string `json:"code"`

	// Человекочитаемое сообщение об ошибке
	// example: Ошибка валидации данных
	Message string `json:"message"`

	// Дополнительные детали об ошибке (опционально)
	// example: поле email должно быть валидным email адресом
	Details string `json:"details,omitempty"`
}

// TokenResponse представляет ответ с токенами авторизации
type TokenResponse struct {
	// JWT токен для доступа к защищенным эндпоинтам
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	AccessToken string `json:"access_token"`

	// JWT токен для обновления access токена
	// example: eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...
	RefreshToken string `json:"refresh_token"`
}

// SwaggerQueueEntry описывает запись очереди джукбокса в документации
type SwaggerQueueEntry struct {
	EntryID     uint   `json:"entry_id" example:"1"`
	RoomID      uint   `json:"room_id" example:"1"`
	SubmittedBy uint   `json:"submitted_by" example:"2"`
	MediaRef    string `json:"media_ref" example:"dQw4w9WgXcQ"`
	Title       string `json:"title" example:"Название трека"`
	Thumbnail   string `json:"thumbnail" example:"https://i.ytimg.com/vi/dQw4w9WgXcQ/mqdefault.jpg"`
	DurationSec int64  `json:"duration_sec" example:"212"`
	Status      string `json:"status" example:"queued"`
	CreatedAt   string `json:"created_at" example:"2025-04-12T10:00:00Z"`
}

// SwaggerAdvanceResponse представляет результат переключения очереди
type SwaggerAdvanceResponse struct {
	// Новый играющий трек (null, если очередь пуста)
	Entry *SwaggerQueueEntry `json:"entry"`

	// Пояснение, когда трека нет
	// example: Очередь пуста
	Message string `json:"message,omitempty"`
}

// SwaggerNowPlayingResponse представляет текущий трек комнаты
type SwaggerNowPlayingResponse struct {
	State string `json:"state" example:"playing"`

	// Текущий трек (null, если state = idle)
	Entry *SwaggerQueueEntry `json:"entry"`

	// Сколько секунд трек уже играет
	PlayerTime int64 `json:"player_time" example:"42"`
}
