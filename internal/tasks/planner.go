package tasks

import (
	"log"
	"time"

	"jukebox/internal/jukebox"
	"jukebox/internal/models"
	"jukebox/internal/storage"

	"github.com/robfig/cron/v3"
)

// AdvanceExpiredTracks находит треки, которые играют дольше своей длительности,
// и переключает очередь их комнат. Это фоновая сверка: основной канал
// переключения — явный вызов advance, задача лишь подбирает отставших.
func AdvanceExpiredTracks() {
	var playing []models.QueueEntry
	if err := storage.DB.
		Where("status = ? AND started_at IS NOT NULL", models.StatusPlaying).
		Find(&playing).Error; err != nil {
		log.Println("Ошибка при поиске играющих треков:", err)
		return
	}

	now := time.Now()
	for _, entry := range playing {
		if entry.DurationSec <= 0 {
			// Длительность не разрешилась — такой трек не переключаем автоматически.
			continue
		}
		expiresAt := entry.StartedAt.Add(time.Duration(entry.DurationSec) * time.Second)
		if now.Before(expiresAt) {
			continue
		}

		if _, err := jukebox.Advance(entry.RoomID); err != nil {
			log.Println("Ошибка автопереключения очереди комнаты", entry.RoomID, ":", err)
		} else {
			log.Printf("Трек %d в комнате %d доиграл, очередь переключена.\n", entry.ID, entry.RoomID)
		}
	}
}

// CleanFinishedEntries удаляет завершённые записи старше недели.
func CleanFinishedEntries() {
	threshold := time.Now().Add(-7 * 24 * time.Hour)
	if err := storage.DB.
		Where("status IN ? AND updated_at < ?", []string{models.StatusPlayed, models.StatusSkipped}, threshold).
		Delete(&models.QueueEntry{}).Error; err != nil {
		log.Println("Ошибка при удалении завершённых записей:", err)
	} else {
		log.Println("Завершённые записи успешно удалены.")
	}
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Сверка играющих треков каждые 15 секунд.
	_, err := c.AddFunc("*/15 * * * * *", AdvanceExpiredTracks)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи AdvanceExpiredTracks:", err)
	}

	// Задача очистки завершённых записей каждый день в 03:00.
	_, err = c.AddFunc("0 0 3 * * *", CleanFinishedEntries)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи CleanFinishedEntries:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
