package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"jukebox/internal/storage"
)

// Track — результат разрешения ссылки: что проигрывать и что показывать.
type Track struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Thumbnail   string `json:"thumbnail"`
	DurationSec int64  `json:"duration_sec"`
}

var (
	ErrTrackNotFound = errors.New("трек не найден")
	ErrInvalidLink   = errors.New("неверная ссылка на видео")
)

// APIBaseURL переопределяется в тестах на локальную заглушку.
var APIBaseURL = "https://www.googleapis.com/youtube/v3/videos"

var httpClient = &http.Client{Timeout: 5 * time.Second}

var ctx = context.Background()

const cacheTTL = 24 * time.Hour

// Resolve принимает ссылку на YouTube (watch?v=, youtu.be или голый ID)
// и возвращает метаданные трека. Результат кэшируется в Redis.
func Resolve(rawLink string) (*Track, error) {
	videoID, err := ParseVideoID(rawLink)
	if err != nil {
		return nil, err
	}

	cacheKey := "track:" + videoID
	if storage.RedisClient != nil {
		cached, err := storage.RedisClient.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			var track Track
			if err := json.Unmarshal([]byte(cached), &track); err == nil {
				return &track, nil
			}
		}
	}

	track, err := fetchVideoDetails(videoID)
	if err != nil {
		return nil, err
	}

	if storage.RedisClient != nil {
		if data, err := json.Marshal(track); err == nil {
			storage.RedisClient.Set(ctx, cacheKey, data, cacheTTL)
		}
	}

	return track, nil
}

// ParseVideoID достаёт идентификатор видео из ссылки в любом из поддерживаемых форматов.
func ParseVideoID(rawLink string) (string, error) {
	rawLink = strings.TrimSpace(rawLink)
	if rawLink == "" {
		return "", ErrInvalidLink
	}

	// Голый идентификатор без схемы и слешей тоже принимаем.
	if !strings.Contains(rawLink, "/") && !strings.Contains(rawLink, ".") {
		return rawLink, nil
	}

	if !strings.HasPrefix(rawLink, "http://") && !strings.HasPrefix(rawLink, "https://") {
		rawLink = "https://" + rawLink
	}

	u, err := url.Parse(rawLink)
	if err != nil {
		return "", ErrInvalidLink
	}

	switch {
	case strings.HasSuffix(u.Host, "youtu.be"):
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", ErrInvalidLink
		}
		return id, nil
	case strings.Contains(u.Host, "youtube.com"):
		if strings.HasPrefix(u.Path, "/shorts/") {
			id := strings.TrimPrefix(u.Path, "/shorts/")
			id = strings.Trim(id, "/")
			if id == "" {
				return "", ErrInvalidLink
			}
			return id, nil
		}
		id := u.Query().Get("v")
		if id == "" {
			return "", ErrInvalidLink
		}
		return id, nil
	}

	return "", ErrInvalidLink
}

func fetchVideoDetails(videoID string) (*Track, error) {
	response := struct {
		Items []struct {
			Snippet struct {
				Title      string `json:"title"`
				Thumbnails struct {
					Medium struct {
						URL string `json:"url"`
					} `json:"medium"`
					Default struct {
						URL string `json:"url"`
					} `json:"default"`
				} `json:"thumbnails"`
			} `json:"snippet"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}{}

	req, err := http.NewRequest("GET", APIBaseURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Add("key", os.Getenv("YOUTUBE_API_KEY"))
	q.Add("part", "snippet,contentDetails")
	q.Add("id", videoID)
	req.URL.RawQuery = q.Encode()

	resp, err := httpClient.Do(req)
	if err != nil {
		// Таймаут или сетевая ошибка трактуются как неудачное разрешение.
		return nil, fmt.Errorf("%w: %v", ErrTrackNotFound, err)
	}
	defer resp.Body.Close()

	respText, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(respText, &response); err != nil {
		return nil, fmt.Errorf("%w: некорректный ответ YouTube API", ErrTrackNotFound)
	}
	if len(response.Items) == 0 {
		return nil, ErrTrackNotFound
	}

	item := response.Items[0]
	thumbnail := item.Snippet.Thumbnails.Medium.URL
	if thumbnail == "" {
		thumbnail = item.Snippet.Thumbnails.Default.URL
	}

	return &Track{
		VideoID:     videoID,
		Title:       item.Snippet.Title,
		Thumbnail:   thumbnail,
		DurationSec: parseISODuration(item.ContentDetails.Duration),
	}, nil
}

// parseISODuration разбирает формат вида PT1H2M3S, который отдаёт YouTube.
func parseISODuration(s string) int64 {
	var h, m, sec int64
	if n, _ := fmt.Sscanf(s, "PT%dH%dM%dS", &h, &m, &sec); n == 3 {
		return h*3600 + m*60 + sec
	}
	if n, _ := fmt.Sscanf(s, "PT%dM%dS", &m, &sec); n == 2 {
		return m*60 + sec
	}
	if n, _ := fmt.Sscanf(s, "PT%dS", &sec); n == 1 {
		return sec
	}
	return 0
}
