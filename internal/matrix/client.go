package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	clientAPIPrefix   = "/_matrix/client/v3"
	clientAPIV1Prefix = "/_matrix/client/v1"
	mediaDownloadPath = "/_matrix/media/v3/download/"
	mxcScheme         = "mxc://"
	tracerName        = "github.com/medienhaus/rundgang-frontend-21/internal/matrix"
)

var ErrBaseURLRequired = errors.New("matrix: homeserver base url is required")

var (
	_ interfaces.RoomGraphClient      = (*Client)(nil)
	_ interfaces.MessageHistoryClient = (*Client)(nil)
)

// APIError is a non-2xx response of the client-server API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"errcode"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("matrix: status %d", e.StatusCode)
	}
	return fmt.Sprintf("matrix: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithAccessToken authenticates every request with a bearer token.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = strings.TrimSpace(token)
	}
}

// WithRequestsPerSecond throttles outgoing requests. Zero disables the limiter.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Client) {
		c.logger = logging.Ensure(logger)
	}
}

// Client talks to a homeserver over the client-server HTTP API.
type Client struct {
	baseURL     *url.URL
	accessToken string
	http        *http.Client
	limiter     *rate.Limiter
	logger      interfaces.Logger
	tracer      trace.Tracer
}

// NewClient builds a client for the homeserver at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, ErrBaseURLRequired
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("matrix: parse base url: %w", err)
	}
	client := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NoOp(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// RoomState returns the full current state of roomID.
func (c *Client) RoomState(ctx context.Context, roomID string) ([]interfaces.StateEvent, error) {
	var events []interfaces.StateEvent
	if err := c.get(ctx, "room_state", c.roomPath(clientAPIPrefix, roomID, "state"), nil, &events); err != nil {
		return nil, roomError(roomID, err)
	}
	for i := range events {
		if events[i].RoomID == "" {
			events[i].RoomID = roomID
		}
	}
	return events, nil
}

// StateEvent returns the content of a single state event.
func (c *Client) StateEvent(ctx context.Context, roomID, eventType, stateKey string) (map[string]any, error) {
	path := c.roomPath(clientAPIPrefix, roomID, "state", eventType, stateKey)
	var content map[string]any
	if err := c.get(ctx, "state_event", path, nil, &content); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s %s", interfaces.ErrEventNotFound, roomID, eventType)
		}
		return nil, roomError(roomID, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s %s", interfaces.ErrEventNotFound, roomID, eventType)
	}
	return content, nil
}

type joinedMembersResponse struct {
	Joined map[string]struct {
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	} `json:"joined"`
}

// JoinedMembers lists the joined members of roomID ordered by user id.
func (c *Client) JoinedMembers(ctx context.Context, roomID string) ([]interfaces.Member, error) {
	var resp joinedMembersResponse
	if err := c.get(ctx, "joined_members", c.roomPath(clientAPIPrefix, roomID, "joined_members"), nil, &resp); err != nil {
		return nil, roomError(roomID, err)
	}
	members := make([]interfaces.Member, 0, len(resp.Joined))
	for userID, profile := range resp.Joined {
		members = append(members, interfaces.Member{
			UserID:      userID,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

// MediaURL maps mxc://server/media to the homeserver download URL. Values that
// are not mxc references are returned unchanged.
func (c *Client) MediaURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, mxcScheme) {
		return ref
	}
	serverAndMedia := strings.TrimPrefix(ref, mxcScheme)
	server, media, ok := strings.Cut(serverAndMedia, "/")
	if !ok || server == "" || media == "" {
		return ""
	}
	return c.baseURL.String() + mediaDownloadPath + url.PathEscape(server) + "/" + url.PathEscape(media)
}

type hierarchyResponse struct {
	Rooms     []interfaces.HierarchyRoom `json:"rooms"`
	NextBatch string                     `json:"next_batch"`
}

// Hierarchy returns the first page of rooms below roomID, roomID included.
func (c *Client) Hierarchy(ctx context.Context, roomID string, opts interfaces.HierarchyOptions) ([]interfaces.HierarchyRoom, error) {
	resp, err := c.hierarchyPage(ctx, roomID, opts, "")
	if err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// Children lists the immediate children of roomID, following pagination.
func (c *Client) Children(ctx context.Context, roomID string) ([]interfaces.HierarchyRoom, error) {
	opts := interfaces.HierarchyOptions{MaxDepth: 1}
	var children []interfaces.HierarchyRoom
	from := ""
	for {
		resp, err := c.hierarchyPage(ctx, roomID, opts, from)
		if err != nil {
			return nil, err
		}
		for _, room := range resp.Rooms {
			if room.RoomID == roomID {
				continue
			}
			children = append(children, room)
		}
		if resp.NextBatch == "" || resp.NextBatch == from {
			return children, nil
		}
		from = resp.NextBatch
	}
}

func (c *Client) hierarchyPage(ctx context.Context, roomID string, opts interfaces.HierarchyOptions, from string) (hierarchyResponse, error) {
	query := url.Values{}
	if opts.MaxDepth > 0 {
		query.Set("max_depth", strconv.Itoa(opts.MaxDepth))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if from != "" {
		query.Set("from", from)
	}
	var resp hierarchyResponse
	if err := c.get(ctx, "hierarchy", c.roomPath(clientAPIV1Prefix, roomID, "hierarchy"), query, &resp); err != nil {
		return hierarchyResponse{}, roomError(roomID, err)
	}
	return resp, nil
}

type messagesResponse struct {
	Chunk []interfaces.Message `json:"chunk"`
}

type eventFilter struct {
	Types []string `json:"types,omitempty"`
}

// Messages fetches the message history of roomID.
func (c *Client) Messages(ctx context.Context, roomID string, q interfaces.MessageQuery) ([]interfaces.Message, error) {
	query := url.Values{}
	direction := q.Direction
	if direction == "" {
		direction = interfaces.DirectionBackward
	}
	query.Set("dir", string(direction))
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(q.Types) > 0 {
		filter, err := json.Marshal(eventFilter{Types: q.Types})
		if err != nil {
			return nil, fmt.Errorf("matrix: encode filter: %w", err)
		}
		query.Set("filter", string(filter))
	}
	var resp messagesResponse
	if err := c.get(ctx, "messages", c.roomPath(clientAPIPrefix, roomID, "messages"), query, &resp); err != nil {
		return nil, roomError(roomID, err)
	}
	return resp.Chunk, nil
}

func (c *Client) roomPath(prefix, roomID string, segments ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("/rooms/")
	b.WriteString(url.PathEscape(roomID))
	for _, segment := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(segment))
	}
	return b.String()
}

func (c *Client) get(ctx context.Context, operation, path string, query url.Values, target any) (err error) {
	ctx, span := c.tracer.Start(ctx, "matrix."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("matrix: rate limit wait: %w", err)
		}
	}

	endpoint := c.baseURL.String() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("matrix: build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("matrix: %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.String("matrix.operation", operation),
		attribute.Int("http.status_code", resp.StatusCode),
	)
	c.logger.Debug("matrix.request",
		"operation", operation,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("matrix: decode %s response: %w", operation, err)
	}
	return nil
}

func roomError(roomID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", interfaces.ErrRoomUnavailable, roomID, err)
}
