package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"platter/internal/disc"
)

// ErrNoReleases indicates MusicBrainz has no release matching the disc TOC.
var ErrNoReleases = errors.New("no matching releases")

// ArtistCredit is one entry of a MusicBrainz artist credit list.
type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// Recording identifies the underlying MusicBrainz recording of a track.
type Recording struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Track is a single track of a release medium.
type Track struct {
	Position  int       `json:"position"`
	Title     string    `json:"title"`
	LengthMS  int       `json:"length"`
	Recording Recording `json:"recording"`
}

// Medium is one physical disc of a release.
type Medium struct {
	Format     string  `json:"format"`
	Position   int     `json:"position"`
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
}

// Release models the subset of a MusicBrainz release the pipeline consumes.
type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	Country      string         `json:"country"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Media        []Medium       `json:"media"`
}

// JoinedArtist renders the full artist credit, honoring join phrases.
func (r Release) JoinedArtist() string {
	var builder strings.Builder
	for _, credit := range r.ArtistCredit {
		name := credit.Name
		if name == "" {
			name = credit.Artist.Name
		}
		builder.WriteString(name)
		builder.WriteString(credit.JoinPhrase)
	}
	return strings.TrimSpace(builder.String())
}

// LookupResponse models the discid lookup payload.
type LookupResponse struct {
	Releases []Release `json:"releases"`
}

// Resolver defines the MusicBrainz operations used by identification.
type Resolver interface {
	LookupByTOC(ctx context.Context, toc disc.TOC) ([]Release, error)
	CoverArtFront(ctx context.Context, releaseID string) ([]byte, string, error)
}

// Client provides access to the MusicBrainz web service and the Cover Art
// Archive.
type Client struct {
	baseURL     string
	coverArtURL string
	userAgent   string
	httpClient  *http.Client
}

var _ Resolver = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCoverArtURL overrides the Cover Art Archive base URL.
func WithCoverArtURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.coverArtURL = trimmed
		}
	}
}

// New creates a MusicBrainz client. The user agent is mandatory per the
// MusicBrainz API terms.
func New(baseURL, userAgent string, timeoutSeconds int, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return nil, errors.New("musicbrainz user agent required")
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		coverArtURL: "https://coverartarchive.org",
		userAgent:   userAgent,
		httpClient:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// LookupByTOC queries the discid endpoint with the raw table of contents so
// MusicBrainz performs the disc ID computation server side.
func (c *Client) LookupByTOC(ctx context.Context, toc disc.TOC) ([]Release, error) {
	if toc.TrackCount() == 0 {
		return nil, errors.New("toc has no tracks")
	}

	endpoint, err := url.Parse(c.baseURL + "/discid/-")
	if err != nil {
		return nil, fmt.Errorf("parse musicbrainz url: %w", err)
	}
	params := url.Values{}
	params.Set("toc", tocParam(toc))
	params.Set("fmt", "json")
	params.Set("inc", "artist-credits+recordings")
	params.Set("cdstubs", "no")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoReleases
	default:
		return nil, fmt.Errorf("musicbrainz lookup returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload LookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode musicbrainz response: %w", err)
	}
	if len(payload.Releases) == 0 {
		return nil, ErrNoReleases
	}
	return payload.Releases, nil
}

// tocParam renders the TOC in MusicBrainz form: first track, last track,
// lead-out offset, then one frame offset per track. The values are joined
// with spaces; url.Values encoding turns them into the documented
// toc=1+12+267257+... query form.
func tocParam(toc disc.TOC) string {
	parts := make([]string, 0, toc.TrackCount()+3)
	parts = append(parts,
		strconv.Itoa(toc.FirstTrack),
		strconv.Itoa(toc.LastTrack),
		strconv.Itoa(toc.LeadoutFrames()),
	)
	for _, offset := range toc.TrackOffsets {
		parts = append(parts, strconv.Itoa(offset))
	}
	return strings.Join(parts, " ")
}

// SubmissionURL returns the MusicBrainz page where the disc's TOC can be
// attached to a release, for discs the lookup cannot identify.
func SubmissionURL(toc disc.TOC) string {
	params := url.Values{}
	params.Set("toc", tocParam(toc))
	params.Set("tracks", strconv.Itoa(toc.TrackCount()))
	return "https://musicbrainz.org/cdtoc/attach?" + params.Encode()
}

// maxCoverArtBytes bounds cover art downloads.
const maxCoverArtBytes = 16 << 20

// CoverArtFront fetches the 500px front image for a release from the Cover
// Art Archive. It returns the image bytes and a file extension derived from
// the response content type.
func (c *Client) CoverArtFront(ctx context.Context, releaseID string) ([]byte, string, error) {
	releaseID = strings.TrimSpace(releaseID)
	if releaseID == "" {
		return nil, "", errors.New("release id required")
	}

	endpoint := fmt.Sprintf("%s/release/%s/front-500", c.coverArtURL, url.PathEscape(releaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", ErrNoReleases
	default:
		return nil, "", fmt.Errorf("cover art fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverArtBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read cover art: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("cover art response was empty")
	}

	ext := ".jpg"
	switch strings.ToLower(resp.Header.Get("Content-Type")) {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	}
	return data, ext, nil
}
