package jukebox

// Координатор очереди джукбокса. Все переходы статусов записей проходят
// только через этот пакет, HTTP-обработчики лишь транслируют результат.

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"jukebox/internal/models"
	"jukebox/internal/resolver"
	"jukebox/internal/storage"
	"jukebox/internal/ws"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSubmissionRejected — ссылка не разрешилась или нарушен лимит заявок.
	ErrSubmissionRejected = errors.New("заявка отклонена")
	// ErrCoordination — переход статуса не удалось применить атомарно даже после повтора.
	ErrCoordination = errors.New("не удалось применить переход очереди")
	// ErrNotAuthorized — недостаточно прав на операцию.
	ErrNotAuthorized = errors.New("недостаточно прав")
	// ErrRoomNotFound — комната не существует или закрыта.
	ErrRoomNotFound = errors.New("комната не найдена")
	// ErrEntryNotFound — запись очереди не существует.
	ErrEntryNotFound = errors.New("запись не найдена")
	// ErrEntryFinished — запись уже доиграла, удалять её нельзя.
	ErrEntryFinished = errors.New("запись уже завершена")
)

// maxPendingPerUser читает опциональный лимит заявок на пользователя.
// 0 или отсутствие переменной — лимит выключен.
func maxPendingPerUser() int64 {
	v := os.Getenv("JUKEBOX_MAX_PENDING_PER_USER")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Submit разрешает ссылку через YouTube и ставит трек в конец очереди комнаты.
func Submit(roomID uint, userID uint, rawLink string) (*models.QueueEntry, error) {
	var room models.Room
	if err := storage.DB.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	if !room.IsActive {
		return nil, fmt.Errorf("%w: комната закрыта", ErrSubmissionRejected)
	}

	track, err := resolver.Resolve(rawLink)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionRejected, err)
	}

	if limit := maxPendingPerUser(); limit > 0 {
		var pending int64
		storage.DB.Model(&models.QueueEntry{}).
			Where("room_id = ? AND submitted_by = ? AND status = ?", roomID, userID, models.StatusQueued).
			Count(&pending)
		if pending >= limit {
			return nil, fmt.Errorf("%w: превышен лимит заявок (%d)", ErrSubmissionRejected, limit)
		}
	}

	entry := models.QueueEntry{
		RoomID:      roomID,
		SubmittedBy: userID,
		MediaRef:    track.VideoID,
		Title:       track.Title,
		Thumbnail:   track.Thumbnail,
		DurationSec: track.DurationSec,
		Status:      models.StatusQueued,
	}
	if err := storage.DB.Create(&entry).Error; err != nil {
		return nil, err
	}

	ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
		EventType: "track_queued",
		RoomID:    strconv.Itoa(int(roomID)),
		Data: map[string]interface{}{
			"entry_id":     entry.ID,
			"submitted_by": userID,
			"title":        entry.Title,
			"thumbnail":    entry.Thumbnail,
		},
	})

	return &entry, nil
}

// Advance завершает текущий трек и запускает следующий по порядку подачи.
// Возвращает новый playing или nil, если очередь пуста. Весь переход — одна
// транзакция с блокировкой строк: два одновременных вызова не смогут
// запустить два разных трека.
func Advance(roomID uint) (*models.QueueEntry, error) {
	next, finished, err := advanceOnce(roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
		// Конфликт с конкурентным вызовом: перечитываем состояние и пробуем ещё раз.
		next, finished, err = advanceOnce(roomID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCoordination, err)
		}
	}

	roomIDStr := strconv.Itoa(int(roomID))
	if finished != nil {
		ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
			EventType: "track_finished",
			RoomID:    roomIDStr,
			Data:      map[string]interface{}{"entry_id": finished.ID},
		})
	}
	if next != nil {
		ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
			EventType: "track_started",
			RoomID:    roomIDStr,
			Data: map[string]interface{}{
				"entry_id":  next.ID,
				"media_ref": next.MediaRef,
				"title":     next.Title,
			},
		})
	}

	return next, nil
}

func advanceOnce(roomID uint) (next *models.QueueEntry, finished *models.QueueEntry, err error) {
	next, finished = nil, nil
	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		// Блокируем строку комнаты: advance одной комнаты выполняются строго
		// по одному. Блокировок отдельных записей недостаточно — второй вызов,
		// дождавшись чужого коммита, уже не видит ни старый playing, ни только
		// что запущенный трек и запустил бы ещё один.
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}

		var playing models.QueueEntry
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND status = ?", roomID, models.StatusPlaying).
			First(&playing)
		if res.Error == nil {
			if err := tx.Model(&playing).Update("status", models.StatusPlayed).Error; err != nil {
				return err
			}
			playing.Status = models.StatusPlayed
			finished = &playing
		} else if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		var candidate models.QueueEntry
		res = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND status = ?", roomID, models.StatusQueued).
			Order("created_at ASC, id ASC").
			First(&candidate)
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			// Очередь пуста — это не ошибка.
			return nil
		}
		if res.Error != nil {
			return res.Error
		}

		now := time.Now()
		if err := tx.Model(&candidate).Updates(map[string]interface{}{
			"status":     models.StatusPlaying,
			"started_at": now,
		}).Error; err != nil {
			return err
		}
		candidate.Status = models.StatusPlaying
		candidate.StartedAt = &now
		next = &candidate
		return nil
	})
	return next, finished, err
}

// Remove убирает запись из очереди. Автор может снять свою заявку, пока она
// в статусе queued; преподаватель — любую незавершённую. Играющая запись
// помечается skipped, ожидающая удаляется физически.
func Remove(roomID uint, entryID uint, requestedBy uint, role string) error {
	roomIDStr := strconv.Itoa(int(roomID))

	// Статус записи может поменять конкурентный advance, поэтому обе мутации
	// условны по прочитанному статусу. Ноль затронутых строк — перечитываем
	// состояние и пробуем ещё раз, статус назад не откатывается.
	for attempt := 0; attempt < 2; attempt++ {
		var entry models.QueueEntry
		if err := storage.DB.Where("room_id = ? AND id = ?", roomID, entryID).First(&entry).Error; err != nil {
			return ErrEntryNotFound
		}

		if entry.Status == models.StatusPlayed || entry.Status == models.StatusSkipped {
			return ErrEntryFinished
		}

		isModerator := role == models.RoleTeacher
		ownQueued := entry.SubmittedBy == requestedBy && entry.Status == models.StatusQueued
		if !isModerator && !ownQueued {
			return ErrNotAuthorized
		}

		if entry.Status == models.StatusPlaying {
			res := storage.DB.Model(&models.QueueEntry{}).
				Where("id = ? AND status = ?", entry.ID, models.StatusPlaying).
				Update("status", models.StatusSkipped)
			if res.Error != nil {
				return fmt.Errorf("%w: %v", ErrCoordination, res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
				EventType: "track_skipped",
				RoomID:    roomIDStr,
				Data:      map[string]interface{}{"entry_id": entry.ID},
			})
			return nil
		}

		res := storage.DB.Unscoped().
			Where("id = ? AND status = ?", entry.ID, models.StatusQueued).
			Delete(&models.QueueEntry{})
		if res.Error != nil {
			return fmt.Errorf("%w: %v", ErrCoordination, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		ws.HubInstance.BroadcastWSMessage(ws.WSMessage{
			EventType: "track_removed",
			RoomID:    roomIDStr,
			Data:      map[string]interface{}{"entry_id": entry.ID},
		})
		return nil
	}

	return fmt.Errorf("%w: статус записи изменился во время удаления", ErrCoordination)
}

// ListQueue возвращает проекцию очереди: играющий трек первым, дальше
// ожидающие в порядке подачи.
func ListQueue(roomID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := storage.DB.
		Preload("User").
		Where("room_id = ? AND status IN ?", roomID, []string{models.StatusPlaying, models.StatusQueued}).
		Order("CASE WHEN status = 'playing' THEN 0 ELSE 1 END, created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// NowPlaying возвращает текущий играющий трек комнаты или nil.
func NowPlaying(roomID uint) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := storage.DB.
		Preload("User").
		Where("room_id = ? AND status = ?", roomID, models.StatusPlaying).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
