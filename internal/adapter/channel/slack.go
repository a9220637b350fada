package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"gptalk/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.HistoryFetcher = (*SlackGateway)(nil)
	_ domain.MessagePoster  = (*SlackGateway)(nil)
)

// Slack block text limits.
const (
	maxFieldChars   = 2000
	maxSectionChars = 3000
	repliesPageSize = 200
)

// SlackOption configures the Slack gateway.
type SlackOption func(*slackOptions)

type slackOptions struct {
	appToken   string
	apiURL     string
	httpClient *http.Client
	postRate   rate.Limit
	postBurst  int
}

// WithSlackAppToken sets the app-level token used by Socket Mode.
func WithSlackAppToken(token string) SlackOption {
	return func(o *slackOptions) { o.appToken = token }
}

// WithSlackAPIURL points the client at another Web API base URL.
func WithSlackAPIURL(u string) SlackOption {
	return func(o *slackOptions) {
		if u != "" && !strings.HasSuffix(u, "/") {
			u += "/"
		}
		o.apiURL = u
	}
}

// WithSlackHTTPClient replaces the HTTP client used for Web API calls.
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(o *slackOptions) { o.httpClient = c }
}

// WithSlackPostRate paces outbound posts to perSecond with the given burst.
func WithSlackPostRate(perSecond float64, burst int) SlackOption {
	return func(o *slackOptions) {
		o.postRate = rate.Limit(perSecond)
		o.postBurst = burst
	}
}

// SlackGateway reads thread history and posts replies through the Slack Web API.
type SlackGateway struct {
	api     *slack.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSlackGateway creates a gateway authenticated with the bot token.
func NewSlackGateway(botToken string, logger *slog.Logger, opts ...SlackOption) *SlackGateway {
	o := slackOptions{postRate: 1, postBurst: 5}
	for _, fn := range opts {
		fn(&o)
	}

	var clientOpts []slack.Option
	if o.appToken != "" {
		clientOpts = append(clientOpts, slack.OptionAppLevelToken(o.appToken))
	}
	if o.apiURL != "" {
		clientOpts = append(clientOpts, slack.OptionAPIURL(o.apiURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, slack.OptionHTTPClient(o.httpClient))
	}

	return &SlackGateway{
		api:     slack.New(botToken, clientOpts...),
		limiter: rate.NewLimiter(o.postRate, o.postBurst),
		logger:  logger,
	}
}

// Client exposes the underlying Web API client for Socket Mode.
func (g *SlackGateway) Client() *slack.Client { return g.api }

// BotUserID resolves the bot's own user id via auth.test.
func (g *SlackGateway) BotUserID(ctx context.Context) (string, error) {
	resp, err := g.api.AuthTestContext(ctx)
	if err != nil {
		return "", domain.WrapOp("SlackGateway.BotUserID", fmt.Errorf("auth.test: %w", err))
	}
	g.logger.Info("slack authenticated", "bot_user_id", resp.UserID, "team", resp.Team)
	return resp.UserID, nil
}

// FetchReplies returns every message of the thread rooted at threadTS,
// oldest first, following pagination cursors.
func (g *SlackGateway) FetchReplies(ctx context.Context, channelID, threadTS string) ([]domain.RawMessage, error) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     repliesPageSize,
	}

	var out []domain.RawMessage
	pages := 0
	for {
		msgs, hasMore, next, err := g.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, domain.WrapOp("SlackGateway.FetchReplies", fmt.Errorf("conversations.replies: %w", err))
		}
		pages++
		for _, m := range msgs {
			sender := m.User
			if sender == "" {
				sender = m.BotID
			}
			out = append(out, domain.RawMessage{SenderID: sender, Text: m.Text})
		}
		if !hasMore || next == "" {
			break
		}
		params.Cursor = next
	}

	g.logger.Debug("thread replies fetched", "channel", channelID, "thread_ts", threadTS,
		"messages", len(out), "pages", pages)
	return out, nil
}

// PostMessage posts reply into its thread. Posts wait for the outbound rate
// limiter before hitting the API.
func (g *SlackGateway) PostMessage(ctx context.Context, reply domain.Reply) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.WrapOp("SlackGateway.PostMessage", fmt.Errorf("post rate limiter: %w", err))
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(reply.Text, false),
		slack.MsgOptionBlocks(toSlackBlocks(reply.Blocks)...),
	}
	if reply.ThreadAnchor != "" {
		opts = append(opts, slack.MsgOptionTS(reply.ThreadAnchor))
	}

	_, ts, err := g.api.PostMessageContext(ctx, reply.ChannelID, opts...)
	if err != nil {
		return domain.WrapOp("SlackGateway.PostMessage", fmt.Errorf("chat.postMessage: %w", err))
	}
	g.logger.Debug("slack message posted", "channel", reply.ChannelID, "ts", ts)
	return nil
}

// toSlackBlocks renders section blocks. Markdown that fits a single field is
// sent as a mrkdwn field; longer text uses the section's text object, which
// Slack allows to be larger.
func toSlackBlocks(blocks []domain.Block) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.Type != domain.BlockSection || b.Markdown == "" {
			continue
		}
		md := b.Markdown
		if len([]rune(md)) <= maxFieldChars {
			field := slack.NewTextBlockObject(slack.MarkdownType, md, false, false)
			out = append(out, slack.NewSectionBlock(nil, []*slack.TextBlockObject{field}, nil))
			continue
		}
		text := slack.NewTextBlockObject(slack.MarkdownType, truncateRunes(md, maxSectionChars), false, false)
		out = append(out, slack.NewSectionBlock(text, nil, nil))
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
