package models

// Source identifies the metadata provider an item came from
type Source string

const (
	SourceTMDB        Source = "tmdb"
	SourceMAL         Source = "mal"
	SourceIGDB        Source = "igdb"
	SourceHardcover   Source = "hardcover"
	SourceOpenLibrary Source = "openlibrary"
	SourceComicVine   Source = "comicvine"
	SourceYouTube     Source = "youtube"
	SourceManual      Source = "manual"
)

// Label returns the human-readable provider name
func (s Source) Label() string {
	switch s {
	case SourceTMDB:
		return "The Movie Database"
	case SourceMAL:
		return "MyAnimeList"
	case SourceIGDB:
		return "Internet Game Database"
	case SourceHardcover:
		return "Hardcover"
	case SourceOpenLibrary:
		return "Open Library"
	case SourceComicVine:
		return "Comic Vine"
	case SourceYouTube:
		return "YouTube"
	case SourceManual:
		return "Manual"
	default:
		return string(s)
	}
}

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	switch s {
	case SourceTMDB, SourceMAL, SourceIGDB, SourceHardcover,
		SourceOpenLibrary, SourceComicVine, SourceYouTube, SourceManual:
		return true
	}
	return false
}

// MediaType classifies what kind of media an item is
type MediaType string

const (
	MediaTypeMovie        MediaType = "movie"
	MediaTypeTV           MediaType = "tv"
	MediaTypeSeason       MediaType = "season"
	MediaTypeEpisode      MediaType = "episode"
	MediaTypeAnime        MediaType = "anime"
	MediaTypeManga        MediaType = "manga"
	MediaTypeGame         MediaType = "game"
	MediaTypeBook         MediaType = "book"
	MediaTypeComic        MediaType = "comic"
	MediaTypeYouTube      MediaType = "youtube"
	MediaTypeYouTubeVideo MediaType = "youtube_video"
)

// Label returns the human-readable media type name
func (m MediaType) Label() string {
	switch m {
	case MediaTypeTV:
		return "TV Show"
	case MediaTypeYouTube:
		return "YouTube"
	case MediaTypeYouTubeVideo:
		return "YouTube Video"
	default:
		// Single-word types just get title case
		if len(m) == 0 {
			return ""
		}
		return string(m[0]-'a'+'A') + string(m[1:])
	}
}

// Valid reports whether m is a known media type
func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeMovie, MediaTypeTV, MediaTypeSeason, MediaTypeEpisode,
		MediaTypeAnime, MediaTypeManga, MediaTypeGame, MediaTypeBook,
		MediaTypeComic, MediaTypeYouTube, MediaTypeYouTubeVideo:
		return true
	}
	return false
}

// Status is a user's tracking status for a media entry
type Status string

const (
	StatusInProgress Status = "In progress"
	StatusCompleted  Status = "Completed"
	StatusRepeating  Status = "Repeating"
	StatusPlanning   Status = "Planning"
	StatusPaused     Status = "Paused"
	StatusDropped    Status = "Dropped"
)

// Valid reports whether s is a known tracking status
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusRepeating,
		StatusPlanning, StatusPaused, StatusDropped:
		return true
	}
	return false
}
