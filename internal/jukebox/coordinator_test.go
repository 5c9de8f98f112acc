package jukebox

import (
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"jukebox/internal/models"
	"jukebox/internal/storage"
	"jukebox/internal/ws"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

var hubOnce sync.Once

func setupCoordinatorTest(t *testing.T) {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		if err := godotenv.Load("../../.env"); err != nil {
			log.Println("Файл .env не найден, используются переменные окружения")
		}
	}

	storage.ConnectTestingDatabase()

	if err := storage.DB.AutoMigrate(&models.User{}, &models.Room{}, &models.QueueEntry{}); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}
	storage.DB.Exec("TRUNCATE TABLE users, rooms, queue_entries RESTART IDENTITY CASCADE;")

	// Хаб должен вычитывать broadcast-канал, иначе координатор зависнет на рассылке.
	hubOnce.Do(func() {
		go ws.HubInstance.Run()
	})
}

func createTestRoom(t *testing.T, owner *models.User) models.Room {
	room := models.Room{
		Name:     "Тестовый класс",
		Code:     fmt.Sprintf("TEST%d", time.Now().UnixNano()%100000),
		OwnerID:  owner.ID,
		IsActive: true,
	}
	err := storage.DB.Create(&room).Error
	assert.NoError(t, err, "Ошибка создания тестовой комнаты")
	return room
}

func createTestUser(t *testing.T, role string) models.User {
	user := models.User{
		Name:         "Иван",
		Surname:      "Иванов",
		Email:        fmt.Sprintf("ivan_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "hashed123",
		Role:         role,
	}
	err := storage.DB.Create(&user).Error
	assert.NoError(t, err, "Ошибка создания тестового пользователя")
	return user
}

func queueTestEntry(t *testing.T, room models.Room, user models.User, title string, createdAt time.Time) models.QueueEntry {
	entry := models.QueueEntry{
		RoomID:      room.ID,
		SubmittedBy: user.ID,
		MediaRef:    "video_" + title,
		Title:       title,
		DurationSec: 180,
		Status:      models.StatusQueued,
	}
	err := storage.DB.Create(&entry).Error
	assert.NoError(t, err, "Ошибка создания записи очереди")
	// created_at задаём явно, чтобы порядок подачи был детерминированным.
	err = storage.DB.Model(&entry).Update("created_at", createdAt).Error
	assert.NoError(t, err)
	entry.CreatedAt = createdAt
	return entry
}

func countPlaying(t *testing.T, roomID uint) int64 {
	var n int64
	err := storage.DB.Model(&models.QueueEntry{}).
		Where("room_id = ? AND status = ?", roomID, models.StatusPlaying).
		Count(&n).Error
	assert.NoError(t, err)
	return n
}

func TestAdvanceEmptyRoom(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	room := createTestRoom(t, &teacher)

	entry, err := Advance(room.ID)
	assert.NoError(t, err, "Advance на пустой комнате не должен падать")
	assert.Nil(t, entry, "Advance на пустой комнате должен вернуть nil")

	var total int64
	storage.DB.Model(&models.QueueEntry{}).Where("room_id = ?", room.ID).Count(&total)
	assert.Equal(t, int64(0), total, "Advance на пустой комнате не должен создавать записей")
}

func TestAdvanceFIFO(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	base := time.Now().Add(-time.Hour)
	first := queueTestEntry(t, room, student, "first", base)
	second := queueTestEntry(t, room, student, "second", base.Add(time.Second))
	third := queueTestEntry(t, room, student, "third", base.Add(2*time.Second))

	// Первый advance запускает самую раннюю заявку.
	playing, err := Advance(room.ID)
	assert.NoError(t, err)
	assert.NotNil(t, playing)
	assert.Equal(t, first.ID, playing.ID, "Первым должен заиграть самый ранний трек")
	assert.Equal(t, models.StatusPlaying, playing.Status)
	assert.NotNil(t, playing.StartedAt)
	assert.Equal(t, int64(1), countPlaying(t, room.ID))

	// Второй advance завершает первый и запускает второй.
	playing, err = Advance(room.ID)
	assert.NoError(t, err)
	assert.NotNil(t, playing)
	assert.Equal(t, second.ID, playing.ID)

	var finished models.QueueEntry
	storage.DB.First(&finished, first.ID)
	assert.Equal(t, models.StatusPlayed, finished.Status, "Доигравший трек должен стать played")
	assert.Equal(t, int64(1), countPlaying(t, room.ID))

	// Третий advance.
	playing, err = Advance(room.ID)
	assert.NoError(t, err)
	assert.Equal(t, third.ID, playing.ID)

	// Очередь исчерпана: текущий доигрывает, нового нет.
	playing, err = Advance(room.ID)
	assert.NoError(t, err)
	assert.Nil(t, playing)
	assert.Equal(t, int64(0), countPlaying(t, room.ID))

	storage.DB.First(&finished, third.ID)
	assert.Equal(t, models.StatusPlayed, finished.Status)
}

func TestAdvanceConcurrent(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	queueTestEntry(t, room, student, "only", time.Now().Add(-time.Minute))

	// Два одновременных advance: ровно один трек должен оказаться playing.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Advance(room.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var playingCount, playedCount int64
	storage.DB.Model(&models.QueueEntry{}).Where("room_id = ? AND status = ?", room.ID, models.StatusPlaying).Count(&playingCount)
	storage.DB.Model(&models.QueueEntry{}).Where("room_id = ? AND status = ?", room.ID, models.StatusPlayed).Count(&playedCount)
	// Либо оба вызова увидели очередь по очереди (played + пусто), либо второй был no-op.
	assert.Equal(t, int64(1), playingCount+playedCount, "Запись не должна ни потеряться, ни задвоиться")
	assert.LessOrEqual(t, playingCount, int64(1), "Не больше одного playing на комнату")
}

func TestAdvanceConcurrentWithBacklog(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	base := time.Now().Add(-time.Hour)
	first := queueTestEntry(t, room, student, "first", base)
	second := queueTestEntry(t, room, student, "second", base.Add(time.Second))
	third := queueTestEntry(t, room, student, "third", base.Add(2*time.Second))

	playing, err := Advance(room.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, playing.ID)

	// Два одновременных advance при играющем треке и двух ожидающих:
	// вызовы должны выполниться строго по очереди, а не запустить по треку каждый.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Advance(room.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countPlaying(t, room.ID), "Не больше одного playing на комнату")

	var e1, e2, e3 models.QueueEntry
	storage.DB.First(&e1, first.ID)
	storage.DB.First(&e2, second.ID)
	storage.DB.First(&e3, third.ID)
	assert.Equal(t, models.StatusPlayed, e1.Status)
	assert.Equal(t, models.StatusPlayed, e2.Status, "Второй трек должен успеть доиграть, а не заиграть параллельно с третьим")
	assert.Equal(t, models.StatusPlaying, e3.Status)
}

func TestRemoveWhileAdvancing(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	base := time.Now().Add(-time.Hour)
	first := queueTestEntry(t, room, student, "first", base)
	second := queueTestEntry(t, room, student, "second", base.Add(time.Second))

	playing, err := Advance(room.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, playing.ID)

	// Remove играющего трека наперегонки с advance: доигравший трек не должен
	// задним числом стать skipped.
	var removeErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := Advance(room.ID)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		removeErr = Remove(room.ID, first.ID, teacher.ID, models.RoleTeacher)
	}()
	wg.Wait()

	var e1, e2 models.QueueEntry
	storage.DB.First(&e1, first.ID)
	storage.DB.First(&e2, second.ID)

	switch e1.Status {
	case models.StatusPlayed:
		// Advance успел раньше — Remove обязан был перечитать статус и отказаться.
		assert.ErrorIs(t, removeErr, ErrEntryFinished)
	case models.StatusSkipped:
		assert.NoError(t, removeErr)
	default:
		t.Fatalf("Первый трек в недопустимом статусе %q", e1.Status)
	}

	assert.Equal(t, models.StatusPlaying, e2.Status, "Второй трек должен заиграть в любом порядке событий")
	assert.Equal(t, int64(1), countPlaying(t, room.ID))
}

func TestAdvanceMissingRoom(t *testing.T) {
	setupCoordinatorTest(t)

	_, err := Advance(99999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomsAreIsolated(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	roomA := createTestRoom(t, &teacher)
	roomB := createTestRoom(t, &teacher)

	entryA := queueTestEntry(t, roomA, student, "a", time.Now().Add(-time.Minute))
	entryB := queueTestEntry(t, roomB, student, "b", time.Now().Add(-2*time.Minute))

	playing, err := Advance(roomA.ID)
	assert.NoError(t, err)
	assert.Equal(t, entryA.ID, playing.ID, "Advance комнаты A не должен трогать комнату B")

	var other models.QueueEntry
	storage.DB.First(&other, entryB.ID)
	assert.Equal(t, models.StatusQueued, other.Status)
}

func TestRemovePlayingThenAdvance(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	base := time.Now().Add(-time.Hour)
	first := queueTestEntry(t, room, student, "first", base)
	second := queueTestEntry(t, room, student, "second", base.Add(time.Second))

	playing, err := Advance(room.ID)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, playing.ID)

	// Преподаватель снимает играющий трек — он помечается skipped.
	err = Remove(room.ID, first.ID, teacher.ID, models.RoleTeacher)
	assert.NoError(t, err)

	var skipped models.QueueEntry
	storage.DB.First(&skipped, first.ID)
	assert.Equal(t, models.StatusSkipped, skipped.Status)

	// Следующий advance корректно запускает второй трек.
	playing, err = Advance(room.ID)
	assert.NoError(t, err)
	assert.NotNil(t, playing)
	assert.Equal(t, second.ID, playing.ID)
	assert.Equal(t, int64(1), countPlaying(t, room.ID))
}

func TestRemoveAuthorization(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	other := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	entry := queueTestEntry(t, room, student, "mine", time.Now().Add(-time.Minute))

	// Чужую заявку ученик снять не может.
	err := Remove(room.ID, entry.ID, other.ID, models.RoleStudent)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Свою ожидающую — может, запись удаляется физически.
	err = Remove(room.ID, entry.ID, student.ID, models.RoleStudent)
	assert.NoError(t, err)

	var gone models.QueueEntry
	err = storage.DB.Unscoped().Where("id = ?", entry.ID).First(&gone).Error
	assert.Error(t, err, "Ожидающая запись должна удаляться физически")

	// Свою играющую — уже нет.
	entry2 := queueTestEntry(t, room, student, "mine2", time.Now().Add(-time.Minute))
	_, err = Advance(room.ID)
	assert.NoError(t, err)
	err = Remove(room.ID, entry2.ID, student.ID, models.RoleStudent)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Завершённую не может снять даже преподаватель.
	_, err = Advance(room.ID)
	assert.NoError(t, err)
	err = Remove(room.ID, entry2.ID, teacher.ID, models.RoleTeacher)
	assert.ErrorIs(t, err, ErrEntryFinished)
}

func TestListQueueProjection(t *testing.T) {
	setupCoordinatorTest(t)
	teacher := createTestUser(t, models.RoleTeacher)
	student := createTestUser(t, models.RoleStudent)
	room := createTestRoom(t, &teacher)

	base := time.Now().Add(-time.Hour)
	first := queueTestEntry(t, room, student, "first", base)
	second := queueTestEntry(t, room, student, "second", base.Add(time.Second))
	third := queueTestEntry(t, room, student, "third", base.Add(2*time.Second))

	_, err := Advance(room.ID)
	assert.NoError(t, err)

	entries, err := ListQueue(room.ID)
	assert.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, first.ID, entries[0].ID, "Играющий трек должен идти первым")
	assert.Equal(t, models.StatusPlaying, entries[0].Status)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, third.ID, entries[2].ID)

	// Доигравшие в проекцию не попадают.
	_, err = Advance(room.ID)
	assert.NoError(t, err)
	entries, err = ListQueue(room.ID)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
}

func TestMaxPendingPerUser(t *testing.T) {
	setupCoordinatorTest(t)
	assert.Equal(t, int64(0), maxPendingPerUser(), "По умолчанию лимит выключен")

	os.Setenv("JUKEBOX_MAX_PENDING_PER_USER", "2")
	defer os.Unsetenv("JUKEBOX_MAX_PENDING_PER_USER")
	assert.Equal(t, int64(2), maxPendingPerUser())

	os.Setenv("JUKEBOX_MAX_PENDING_PER_USER", "не число")
	assert.Equal(t, int64(0), maxPendingPerUser(), "Мусор в переменной трактуется как выключенный лимит")
}
