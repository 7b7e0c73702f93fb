package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/app"
	"github.com/mmcdole/folio/internal/cart"
	"github.com/mmcdole/folio/internal/config"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/tui"
	"github.com/mmcdole/folio/internal/tui/styles"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                        \r"

const usage = `Folio, a terminal client for the portfolio API.

Usage:
    folio
    folio login [--email=<email>]
    folio logout
    folio whoami
    folio ls <resource> [--fresh]
    folio upload <file>
    folio log <type> <description> [--link=<url>...]
    folio level <level> <skill>...
    folio share <post> <network>
    folio cache clear [--all]
    folio init
    folio -h | --help
    folio --version

Resources:
    skills, projects, posts, activities, cart

Networks:
    linkedin, facebook

Options:
    -h --help          Show this screen.
    --version          Show version.
    --email=<email>    Email or username to log in with.
    --fresh            Skip the cache and fetch from the server.
    --link=<url>       Link to attach to a logged activity.
    --all              Also remove the saved session and cart.
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "folio "+Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting folio", "version", Version, "api", cfg.API.URL)

	// Commands that run without opening the store
	switch {
	case flag(opts, "init"):
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("✓ Configuration written")
		return nil
	case flag(opts, "cache") && flag(opts, "--all"):
		if err := cfg.ClearCache(); err != nil {
			return err
		}
		fmt.Println("✓ Cache, session and cart removed")
		return nil
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flag(opts, "login"):
		email, _ := opts.String("--email")
		return runLogin(ctx, a, email)
	case flag(opts, "logout"):
		if err := a.Auth.Logout(); err != nil {
			return err
		}
		fmt.Println("✓ Logged out")
		return nil
	case flag(opts, "whoami"):
		return runWhoami(ctx, a)
	case flag(opts, "ls"):
		resource, _ := opts.String("<resource>")
		return runList(ctx, a, resource, flag(opts, "--fresh"))
	case flag(opts, "upload"):
		path, _ := opts.String("<file>")
		return runUpload(ctx, a, path)
	case flag(opts, "log"):
		kind, _ := opts.String("<type>")
		description, _ := opts.String("<description>")
		links, _ := opts["--link"].([]string)
		return runLog(ctx, a, domain.Activity{Type: kind, Description: description, Links: links})
	case flag(opts, "level"):
		level, err := opts.Int("<level>")
		if err != nil {
			return fmt.Errorf("level must be a number: %w", err)
		}
		skills, _ := opts["<skill>"].([]string)
		return runLevel(ctx, a, level, skills)
	case flag(opts, "share"):
		post, _ := opts.String("<post>")
		network, _ := opts.String("<network>")
		return runShare(ctx, a, post, network)
	case flag(opts, "cache"):
		a.Cache.Clear()
		fmt.Println("✓ Cached collections cleared")
		return nil
	}

	// Run the TUI
	a.Start(ctx)
	logger.Info("starting TUI")
	if err := tui.Run(a); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

// runLogin prompts for credentials and stores the session token
func runLogin(ctx context.Context, a *app.App, email string) error {
	if email == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Email or username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		email = strings.TrimSpace(input)
	}

	// Prompt for password (hidden input)
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println() // Add newline after hidden input

	var user domain.User
	err = withSpinner("Logging in...", func() error {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		user, err = a.Auth.Login(ctx, email, string(passwordBytes))
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	name := user.Name
	if name == "" {
		name = email
	}
	fmt.Printf("✓ Logged in as %s\n", name)
	return nil
}

// runWhoami verifies the stored session with the server
func runWhoami(ctx context.Context, a *app.App) error {
	var user domain.User
	err := withSpinner("Checking session...", func() error {
		var err error
		user, err = a.Auth.Verify(ctx)
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	if sub := a.Session.Subject(); sub != "" {
		fmt.Println(styles.DimStyle.Render("subject: " + sub))
	}
	if claims, ok := a.Session.Claims(); ok {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			fmt.Println(styles.DimStyle.Render("expires: " + exp.Local().Format(time.RFC1123)))
		}
	}
	return nil
}

// runList prints one collection
func runList(ctx context.Context, a *app.App, resource string, fresh bool) error {
	var rows []domain.ListItem
	var err error

	switch strings.ToLower(resource) {
	case "skills":
		rows, err = list(ctx, fresh, a.Skills.Get, a.Skills.Fetch)
	case "projects":
		rows, err = list(ctx, fresh, a.Projects.Get, a.Projects.Fetch)
	case "posts":
		rows, err = list(ctx, fresh, a.Posts.Get, a.Posts.Fetch)
	case "activities":
		rows, err = list(ctx, fresh, a.Activities.Get, a.Activities.Fetch)
	case "cart":
		return printCart(a.Cart)
	default:
		return fmt.Errorf("unknown resource %q", resource)
	}
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	for _, row := range rows {
		fmt.Printf("%s  %s  %s\n",
			styles.DimStyle.Render(styles.Pad(row.GetID(), 12)),
			styles.Pad(styles.Truncate(row.GetTitle(), 40), 40),
			styles.SubtitleStyle.Render(row.GetDescription()))
	}
	if len(rows) == 0 {
		fmt.Println(styles.DimStyle.Render("Nothing here yet"))
	}
	return nil
}

// list loads a collection through the cache, or straight from the server
// when fresh is set
func list[T domain.ListItem](ctx context.Context, fresh bool, get, fetch func(context.Context) ([]T, error)) ([]domain.ListItem, error) {
	load := get
	if fresh {
		load = fetch
	}

	var items []T
	err := withSpinner("Loading...", func() error {
		var err error
		items, err = load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ListItem, len(items))
	for i, item := range items {
		rows[i] = item
	}
	return rows, nil
}

func printCart(c *cart.Cart) error {
	lines := c.Items()
	if len(lines) == 0 {
		fmt.Println(styles.DimStyle.Render("Cart is empty"))
		return nil
	}
	for _, line := range lines {
		fmt.Printf("%s  %3d × %8s  %9s\n",
			styles.Pad(styles.Truncate(line.Product.Name, 30), 30),
			line.Quantity,
			line.Product.FormattedPrice(),
			domain.FormatCents(line.Subtotal()))
	}
	fmt.Println(styles.TitleStyle.Render(fmt.Sprintf("Total: %s (%d items)", c.FormattedTotal(), c.Count())))
	return nil
}

// runUpload sends a file to the media endpoint and prints its URL
func runUpload(ctx context.Context, a *app.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var url string
	err = withSpinner("Uploading...", func() error {
		url, err = a.Client.Upload(ctx, path, f)
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	fmt.Println(url)
	return nil
}

// runLog records a new entry in the activity feed
func runLog(ctx context.Context, a *app.App, activity domain.Activity) error {
	var logged domain.Activity
	err := withSpinner("Logging activity...", func() error {
		var err error
		logged, err = a.Activities.Create(ctx, activity)
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	fmt.Printf("✓ Logged activity %s\n", logged.GetID())
	return nil
}

// runLevel sets the level of every named skill in one batch. Skills are
// matched by id or by name.
func runLevel(ctx context.Context, a *app.App, level int, names []string) error {
	var skills []domain.Skill
	err := withSpinner("Loading...", func() error {
		var err error
		skills, err = a.Skills.Get(ctx)
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	updates := make([]domain.Skill, 0, len(names))
	for _, name := range names {
		s, ok := findSkill(skills, name)
		if !ok {
			return fmt.Errorf("no skill named %q", name)
		}
		s.Level = level
		updates = append(updates, s)
	}

	err = withSpinner("Saving...", func() error {
		return a.Skills.UpdateMany(ctx, updates)
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	fmt.Printf("✓ %d skills set to %d%%\n", len(updates), level)
	return nil
}

func findSkill(skills []domain.Skill, name string) (domain.Skill, bool) {
	for _, s := range skills {
		if s.GetID() == name || strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return domain.Skill{}, false
}

// runShare shares a post, named by slug or id, to a social network
func runShare(ctx context.Context, a *app.App, ref, networkName string) error {
	network, err := api.ParseShareNetwork(networkName)
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}

	id := ref
	if posts, ok := a.Posts.Cached(); ok {
		for _, p := range posts {
			if p.Slug == ref && p.ID != "" {
				id = p.ID.String()
			}
		}
	}

	var message string
	err = withSpinner("Sharing...", func() error {
		message, err = a.Client.SharePost(ctx, id, network)
		return err
	})
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	fmt.Println("✓ " + message)
	return nil
}

// withSpinner runs fn while showing a spinner on the terminal
func withSpinner(label string, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	frame := 0
	fmt.Printf("\r%s %s", styles.SpinnerFrames[frame], label)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Print(clearSpinnerLine)
			return err
		case <-ticker.C:
			frame++
			fmt.Printf("\r%s %s", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)], label)
		}
	}
}
