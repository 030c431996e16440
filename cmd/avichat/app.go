package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aviationai/chatengine"
	"github.com/aviationai/chatengine/completion"
	"github.com/aviationai/chatengine/pipeline"
	"github.com/aviationai/chatengine/search"
	"github.com/aviationai/chatengine/session"
	"github.com/aviationai/chatengine/state"
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	starStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer sessions.Close()

	conversations, err := buildConversationStore(cfg)
	if err != nil {
		return fmt.Errorf("conversation store: %w", err)
	}
	defer conversations.Close()

	completer, err := completion.NewOpenAIClient(completion.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		SystemPrompt:   cfg.SystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("completion client: %w", err)
	}

	indexer, err := buildIndexer(cfg, completer, logger)
	if err != nil {
		return err
	}

	// Sign in: a fresh token overwrites any session another device holds.
	monitor := session.NewMonitor(sessions, logger)
	fingerprint, _ := os.Hostname()
	token, err := monitor.StartSession(ctx, cfg.UserID, fingerprint)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	p := buildPipeline(cfg, conversations, completer, token, indexer, logger)

	invalidated := make(chan struct{})
	stopWatch, err := monitor.Watch(ctx, cfg.UserID, token, func() {
		p.HandleSessionInvalid()
		close(invalidated)
	})
	if err != nil {
		return fmt.Errorf("watch session: %w", err)
	}
	defer stopWatch()

	if err := p.Refresh(ctx); err != nil {
		logger.Warn("could not load conversation list", "error", err)
	}

	a := &app{pipeline: p, indexer: indexer, invalidated: invalidated}
	a.attachRenderer()
	return a.loop(ctx, cfg.UserID)
}

// app drives the interactive loop and renders state changes.
type app struct {
	pipeline    *pipeline.Pipeline
	indexer     *search.Indexer
	invalidated chan struct{}

	mu       sync.Mutex
	printed  int           // runes of the current reveal already printed
	revealed chan struct{} // signalled when a reveal completes
}

// attachRenderer subscribes to the state store and prints the typing
// reveal incrementally plus any notices, as they happen.
func (a *app) attachRenderer() {
	a.revealed = make(chan struct{}, 1)
	var lastNotice state.Notice
	var wasTyping bool

	a.pipeline.States().Subscribe(func(s state.State) {
		a.mu.Lock()
		defer a.mu.Unlock()

		if s.Reveal != "" {
			runes := []rune(s.Reveal)
			if len(runes) > a.printed {
				fmt.Print(assistantStyle.Render(string(runes[a.printed:])))
				a.printed = len(runes)
			}
		}
		if wasTyping && !s.IsTyping {
			if a.printed > 0 {
				fmt.Println()
				a.printed = 0
			}
			select {
			case a.revealed <- struct{}{}:
			default:
			}
		}
		wasTyping = s.IsTyping

		if s.Notice == nil {
			lastNotice = state.Notice{}
		} else if *s.Notice != lastNotice {
			lastNotice = *s.Notice
			fmt.Println(noticeStyle.Render("! " + s.Notice.Text))
		}
	})
}

// waitReveal blocks until the in-flight reveal finishes.
func (a *app) waitReveal(ctx context.Context) {
	select {
	case <-a.revealed:
	case <-ctx.Done():
	case <-time.After(2 * time.Minute):
	}
}

func (a *app) loop(ctx context.Context, userID string) error {
	fmt.Println(titleStyle.Render("avichat") + dimStyle.Render(" — signed in as "+userID+". Type a question, or /help."))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		select {
		case <-a.invalidated:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			a.pipeline.Logout()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line); quit {
				a.pipeline.Logout()
				return nil
			}
			continue
		}

		if err := a.pipeline.Submit(ctx, line); err != nil {
			// Notices already rendered; nothing useful to add for these.
			if !isNoticedError(err) {
				fmt.Println(noticeStyle.Render("! " + err.Error()))
			}
			continue
		}
		a.waitReveal(ctx)
	}
}

// isNoticedError reports whether the pipeline already surfaced this
// failure as a state notice, making a second printout redundant.
func isNoticedError(err error) bool {
	for _, sentinel := range []error{
		chatengine.ErrPersistence,
		chatengine.ErrCompletion,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// command handles a /slash command. Returns true to quit.
func (a *app) command(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(dimStyle.Render(strings.TrimSpace(`
/new              start a fresh conversation
/list             list your conversations
/select <n>       open conversation n from the list
/star             star or unstar the open conversation
/rename <title>   retitle the open conversation
/tags <a,b,c>     replace the open conversation's tags
/bookmark <n>     bookmark message n of the open transcript
/delete <n>       delete conversation n from the list
/search <query>   search your past messages
/quit             sign out and exit`)))

	case "/new":
		a.pipeline.StartNew()
		fmt.Println(dimStyle.Render("started a new conversation"))

	case "/list":
		if err := a.pipeline.Refresh(ctx); err != nil {
			return false
		}
		a.printList()

	case "/select":
		if id, ok := a.summaryID(arg); ok {
			if err := a.pipeline.Select(ctx, id); err == nil {
				a.printTranscript()
			}
		}

	case "/star":
		if err := a.pipeline.ToggleStar(ctx); err != nil && !isNoticedError(err) {
			fmt.Println(noticeStyle.Render("! " + err.Error()))
		}

	case "/rename":
		snap := a.pipeline.States().State()
		if snap.Current == nil || arg == "" {
			fmt.Println(dimStyle.Render("open a conversation first, then /rename <title>"))
			return false
		}
		_ = a.pipeline.Rename(ctx, snap.Current.ID, arg)

	case "/tags":
		snap := a.pipeline.States().State()
		if snap.Current == nil {
			fmt.Println(dimStyle.Render("open a conversation first"))
			return false
		}
		var tags []string
		for _, tag := range strings.Split(arg, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		_ = a.pipeline.Retag(ctx, snap.Current.ID, tags)

	case "/bookmark":
		a.bookmark(ctx, arg)

	case "/delete":
		if id, ok := a.summaryID(arg); ok {
			_ = a.pipeline.Delete(ctx, id)
		}

	case "/search":
		a.search(ctx, arg)

	default:
		fmt.Println(dimStyle.Render("unknown command; try /help"))
	}
	return false
}

func (a *app) printList() {
	snap := a.pipeline.States().State()
	if len(snap.Summaries) == 0 {
		fmt.Println(dimStyle.Render("no conversations yet"))
		return
	}
	for i, sum := range snap.Summaries {
		star := "  "
		if sum.Starred {
			star = starStyle.Render("★ ")
		}
		tags := ""
		if len(sum.Tags) > 0 {
			tags = dimStyle.Render("  [" + strings.Join(sum.Tags, ", ") + "]")
		}
		fmt.Printf("%2d. %s%s%s\n", i+1, star, sum.Title, tags)
	}
}

func (a *app) printTranscript() {
	snap := a.pipeline.States().State()
	if snap.Current == nil {
		return
	}
	fmt.Println(titleStyle.Render(snap.Current.Title))
	for i, msg := range snap.History {
		mark := " "
		if msg.Bookmarked {
			mark = starStyle.Render("*")
		}
		who := promptStyle.Render("you")
		body := msg.Content
		if msg.Role == chatengine.RoleAssistant {
			who = assistantStyle.Render("ai ")
			body = assistantStyle.Render(body)
		}
		fmt.Printf("%s%2d %s  %s\n", mark, i+1, who, body)
	}
}

func (a *app) summaryID(arg string) (string, bool) {
	snap := a.pipeline.States().State()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(snap.Summaries) {
		fmt.Println(dimStyle.Render("give a conversation number from /list"))
		return "", false
	}
	return snap.Summaries[n-1].ID, true
}

func (a *app) bookmark(ctx context.Context, arg string) {
	snap := a.pipeline.States().State()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(snap.History) {
		fmt.Println(dimStyle.Render("give a message number from the open transcript"))
		return
	}
	if err := a.pipeline.ToggleBookmark(ctx, snap.History[n-1].ID); err != nil && !isNoticedError(err) {
		fmt.Println(noticeStyle.Render("! " + err.Error()))
	}
}

func (a *app) search(ctx context.Context, query string) {
	if a.indexer == nil {
		fmt.Println(dimStyle.Render("search needs a configured Qdrant endpoint"))
		return
	}
	if query == "" {
		fmt.Println(dimStyle.Render("usage: /search <query>"))
		return
	}
	results, err := a.indexer.Search(ctx, query, 5)
	if err != nil {
		fmt.Println(noticeStyle.Render("! search failed: " + err.Error()))
		return
	}
	if len(results) == 0 {
		fmt.Println(dimStyle.Render("no matches"))
		return
	}
	for _, r := range results {
		fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("%.2f", r.Score)), r.Content)
	}
}
