package youtube

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	videosURL = "https://www.googleapis.com/youtube/v3/videos"

	providerName = "youtube"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

var fileVideoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Client fetches single-video metadata from the YouTube Data API v3
type Client struct {
	http    *httpclient.Client
	apiKey  string
	noImage string
}

// New creates a YouTube adapter
func New(http *httpclient.Client, cfg config.YouTubeConfig, noImageURL string) *Client {
	return &Client{http: http, apiKey: cfg.APIKey, noImage: noImageURL}
}

// ExtractVideoID pulls the video id out of the common YouTube URL shapes
func ExtractVideoID(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractVideoIDFromPath matches a media file named after its video id,
// the naming yt-dlp style rips use. The id is the file name without the
// extension.
func ExtractVideoIDFromPath(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, `/`))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if fileVideoIDPattern.MatchString(stem) {
		return stem
	}
	return ""
}

// ParseDuration converts an ISO 8601 duration like PT4M13S to whole
// minutes, rounding leftover seconds up
func ParseDuration(iso string) int {
	m := durationPattern.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])

	total := hours*60 + minutes
	if seconds > 0 {
		total++
	}
	return total
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string               `json:"title"`
		Description  string               `json:"description"`
		PublishedAt  string               `json:"publishedAt"`
		Thumbnails   map[string]thumbnail `json:"thumbnails"`
		ChannelTitle string               `json:"channelTitle"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

// Fetch returns canonical metadata for a YouTube video reference.
// Videos are served both as standalone youtube_video items and as
// episodes of manually tracked shows.
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	switch ref.MediaType {
	case models.MediaTypeEpisode, models.MediaTypeYouTubeVideo:
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("youtube does not serve media type %q", ref.MediaType))
	}
	meta, err := c.Video(ctx, ref.MediaID)
	if err != nil {
		return nil, err
	}
	meta.MediaType = ref.MediaType
	return meta, nil
}

// Search is unsupported; YouTube items enter the system through webhooks
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	return nil, apperrors.ValidationError("youtube does not support search")
}

// Video fetches one video's metadata by id
func (c *Client) Video(ctx context.Context, videoID string) (*metadata.Metadata, error) {
	params := url.Values{}
	params.Set("id", videoID)
	params.Set("part", "snippet,contentDetails")
	params.Set("key", c.apiKey)

	var resp struct {
		Items []videoItem `json:"items"`
	}
	if err := c.http.GetJSON(ctx, providerName, videosURL, params, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, apperrors.NotFoundError("youtube video", videoID)
	}
	v := resp.Items[0]

	one := 1
	details := map[string]interface{}{
		"channel": v.Snippet.ChannelTitle,
	}
	if mins := ParseDuration(v.ContentDetails.Duration); mins > 0 {
		details["runtime"] = fmt.Sprintf("%dm", mins)
	}
	if d := publishedDate(v.Snippet.PublishedAt); d != "" {
		details["published"] = d
	}

	return &metadata.Metadata{
		MediaID:     videoID,
		Source:      models.SourceYouTube,
		MediaType:   models.MediaTypeEpisode,
		Title:       v.Snippet.Title,
		Image:       c.bestThumbnail(v.Snippet.Thumbnails),
		Synopsis:    metadata.NormalizeSynopsis(v.Snippet.Description),
		MaxProgress: &one,
		Details:     details,
	}, nil
}

// bestThumbnail picks the highest quality available
func (c *Client) bestThumbnail(thumbs map[string]thumbnail) string {
	for _, quality := range []string{"maxres", "high", "medium", "default"} {
		if t, ok := thumbs[quality]; ok && t.URL != "" {
			return t.URL
		}
	}
	return c.noImage
}

func publishedDate(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
