package twitchirc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
)

type Config struct {
	Channel       string
	Nick          string
	Token         string
	UseTLS        bool
	TokenProvider func() string
	Addr          string
	// Whispers enables WHISPER delivery. Every connection receives the
	// account's whispers, so only one client per account should set it.
	Whispers   bool
	DebugDrops bool
}

type Handler func(core.ChatMessage)

type Client struct {
	cfg    Config
	handle Handler
}

var errAuthFailed = errors.New("twitchirc: authentication failed")

// subscription USERNOTICE msg-id values
var subNotices = map[string]struct{}{
	"sub":                 {},
	"resub":               {},
	"subgift":             {},
	"submysterygift":      {},
	"anonsubgift":         {},
	"anonsubmysterygift":  {},
	"giftpaidupgrade":     {},
	"anongiftpaidupgrade": {},
	"primepaidupgrade":    {},
}

func New(cfg Config, h Handler) *Client {
	return &Client{cfg: cfg, handle: h}
}

func (c *Client) Run(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Channel) == "" || strings.TrimSpace(c.cfg.Nick) == "" {
		return errors.New("twitchirc: channel and nick are required")
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}

			if errors.Is(err, errAuthFailed) {
				log.Printf("twitchirc: authentication failed; retrying in %s", backoff)
			} else {
				log.Printf("twitchirc: disconnected: %v; reconnecting in %s", err, backoff)
			}

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			if backoff < 60*time.Second {
				backoff *= 2
				if backoff > 60*time.Second {
					backoff = 60 * time.Second
				}
			}
			continue
		}

		backoff = time.Second
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	token := strings.TrimSpace(c.cfg.Token)
	if c.cfg.TokenProvider != nil {
		if provided := strings.TrimSpace(c.cfg.TokenProvider()); provided != "" {
			token = provided
		}
	}
	token = NormalizeToken(token)
	if token == "" {
		return errors.New("twitchirc: token is required")
	}

	host := "irc.chat.twitch.tv"
	addr := host + ":6667"
	if c.cfg.UseTLS {
		addr = host + ":6697"
	}
	if strings.TrimSpace(c.cfg.Addr) != "" {
		addr = strings.TrimSpace(c.cfg.Addr)
	}

	log.Printf("twitchirc: connecting to %s (tls=%v)", addr, c.cfg.UseTLS)

	d := &net.Dialer{Timeout: 10 * time.Second}
	var conn net.Conn
	var err error
	if c.cfg.UseTLS {
		conn, err = tls.DialWithDialer(d, "tcp", addr, &tls.Config{ServerName: host})
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	// write one IRC line and flush
	send := func(s string) error {
		_, err := rw.WriteString(s + "\r\n")
		if err != nil {
			return err
		}
		return rw.Flush()
	}

	// ensure the per-connection closer goroutine exits when this runOnce returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close() // unblock reader
		case <-done:
		}
	}()

	if err := send("PASS " + token); err != nil {
		return fmt.Errorf("send PASS: %w", err)
	}
	if err := send("NICK " + c.cfg.Nick); err != nil {
		return fmt.Errorf("send NICK: %w", err)
	}
	if err := send("CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership"); err != nil {
		return fmt.Errorf("send CAP REQ: %w", err)
	}
	if err := send("JOIN #" + c.cfg.Channel); err != nil {
		return fmt.Errorf("send JOIN: %w", err)
	}
	log.Printf("twitchirc: joined #%s as %s", c.cfg.Channel, c.cfg.Nick)

	reader := rw.Reader
	drops := newDropLogger(time.Now(), c.cfg.DebugDrops, dropSummaryInterval)
	defer drops.flush(time.Now())
	var (
		nextTick     = time.Now().Add(10 * time.Second)
		readDeadline = 2 * time.Minute
		nextPing     = time.Now().Add(4 * time.Minute)
	)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				now := time.Now()
				if !now.Before(nextPing) {
					if err := send("PING :keepalive"); err != nil {
						return fmt.Errorf("send PING: %w", err)
					}
					nextPing = now.Add(4 * time.Minute)
				}
				if !now.Before(nextTick) {
					logWindow()
					nextTick = now.Add(10 * time.Second)
				}
				continue
			}
			return fmt.Errorf("read: %w", err)
		}

		now := time.Now()
		if !now.Before(nextTick) {
			logWindow()
			nextTick = now.Add(10 * time.Second)
		}
		nextPing = now.Add(4 * time.Minute)

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if authFailure(line) {
			log.Printf("twitchirc: authentication failed per server NOTICE")
			return errAuthFailed
		}

		if strings.HasPrefix(line, "PING ") {
			if err := send("PONG " + strings.TrimPrefix(line, "PING ")); err != nil {
				return fmt.Errorf("send PONG: %w", err)
			}
			nextPing = time.Now().Add(4 * time.Minute)
			continue
		}

		if strings.Contains(line, " RECONNECT") {
			return fmt.Errorf("server requested reconnect")
		}

		msg, reason, ok := parseLine(line, c.cfg.Channel)
		if ok && msg.Kind == core.KindWhisper && !c.cfg.Whispers {
			ok, reason = false, dropWhisperElsewhere
		}
		if !ok {
			drops.note(now, reason, line)
			continue
		}
		ingestMetrics.incReceived(msg.Kind)
		if c.handle != nil {
			c.handle(msg)
		}
	}
}

func logWindow() {
	window, total := ingestMetrics.window()
	log.Printf("twitchirc: recv %d msgs (total %d)", window, total)
}

type ircLine struct {
	tags     map[string]string
	prefix   string
	command  string
	target   string
	trailing string
}

func parseIRC(line string) (ircLine, bool) {
	out := ircLine{tags: map[string]string{}}
	rest := line

	if strings.HasPrefix(rest, "@") {
		idx := strings.Index(rest, " ")
		if idx == -1 {
			return ircLine{}, false
		}
		for _, kv := range strings.Split(rest[1:idx], ";") {
			if kv == "" {
				continue
			}
			key, val, _ := strings.Cut(kv, "=")
			out.tags[key] = unescapeIRC(val)
		}
		rest = strings.TrimSpace(rest[idx+1:])
	}

	if !strings.HasPrefix(rest, ":") {
		return ircLine{}, false
	}
	idx := strings.Index(rest, " ")
	if idx == -1 {
		return ircLine{}, false
	}
	out.prefix = rest[1:idx]
	rest = strings.TrimSpace(rest[idx+1:])

	head, trailing, hasTrailing := strings.Cut(rest, " :")
	if hasTrailing {
		out.trailing = trailing
	} else if strings.HasPrefix(head, ":") {
		head = ""
	}
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ircLine{}, false
	}
	out.command = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		out.target = fields[1]
	}
	return out, true
}

// parseLine converts chat-bearing IRC lines (PRIVMSG, subscription
// USERNOTICE, WHISPER) for channel into a ChatMessage. When the line is
// ignored the returned reason names why.
func parseLine(line, channel string) (core.ChatMessage, string, bool) {
	irc, ok := parseIRC(line)
	if !ok {
		return core.ChatMessage{}, dropMalformed, false
	}

	msg := core.ChatMessage{
		Platform: "Twitch",
		Username: extractUser(irc.prefix),
		Text:     irc.trailing,
		Badges:   parseBadges(irc.tags["badges"]),
		Colour:   irc.tags["color"],
		Ts:       time.Now().UTC(),
	}

	switch irc.command {
	case "PRIVMSG":
		if !sameChannel(irc.target, channel) {
			return core.ChatMessage{}, dropOtherChannel, false
		}
		msg.Kind = core.KindChat
		msg.Channel = strings.TrimPrefix(irc.target, "#")
	case "USERNOTICE":
		if !sameChannel(irc.target, channel) {
			return core.ChatMessage{}, dropOtherChannel, false
		}
		if _, ok := subNotices[irc.tags["msg-id"]]; !ok {
			return core.ChatMessage{}, dropNotSubscription, false
		}
		msg.Kind = core.KindSubscription
		msg.Channel = strings.TrimPrefix(irc.target, "#")
		if login := irc.tags["login"]; login != "" {
			msg.Username = login
		}
		if msg.Text == "" {
			msg.Text = irc.tags["system-msg"]
		}
	case "WHISPER":
		msg.Kind = core.KindWhisper
	default:
		return core.ChatMessage{}, dropNotChat, false
	}

	msg.DisplayName = irc.tags["display-name"]
	if msg.Username == "" {
		msg.Username = strings.ToLower(msg.DisplayName)
	}
	if msg.Username == "" {
		return core.ChatMessage{}, dropMalformed, false
	}

	if tsStr := irc.tags["tmi-sent-ts"]; tsStr != "" {
		if ms, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			msg.Ts = time.UnixMilli(ms).UTC()
		}
	}

	msg.ID = irc.tags["id"]
	if msg.ID == "" {
		msg.ID = irc.tags["message-id"]
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", msg.Username, msg.Ts.UnixNano())
	}
	return msg, "", true
}

func sameChannel(target, channel string) bool {
	return strings.EqualFold(strings.TrimPrefix(target, "#"), strings.TrimPrefix(channel, "#"))
}

func parseBadges(raw string) []core.ChatBadge {
	parts := splitList(raw, ",")
	if len(parts) == 0 {
		return nil
	}
	out := make([]core.ChatBadge, 0, len(parts))
	for _, p := range parts {
		id, version, _ := strings.Cut(p, "/")
		if id == "" {
			continue
		}
		out = append(out, core.ChatBadge{Platform: "twitch", ID: id, Version: version})
	}
	return out
}

func authFailure(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "login authentication failed") {
		return true
	}
	if strings.Contains(lower, "improperly formatted auth") {
		return true
	}
	if strings.Contains(lower, "authentication failed") {
		return true
	}
	return false
}

func extractUser(prefix string) string {
	prefix = strings.TrimPrefix(prefix, ":")
	if idx := strings.Index(prefix, "!"); idx != -1 {
		return prefix[:idx]
	}
	if strings.Contains(prefix, ".") {
		// server prefix such as tmi.twitch.tv
		return ""
	}
	return prefix
}

func unescapeIRC(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case ':':
			b.WriteByte(';')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
