package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/config"
	"github.com/avargasm/medchat-cli/internal/devserver"
	"github.com/avargasm/medchat-cli/internal/logger"
	"github.com/avargasm/medchat-cli/internal/models"
	"github.com/avargasm/medchat-cli/internal/services"
	"github.com/avargasm/medchat-cli/internal/session"
)

var stdin = bufio.NewReader(os.Stdin)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if os.Args[1] == "serve-dev" {
		runDevServer(cfg)
		return
	}

	// Set up the local session store
	store, err := session.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer store.Close()

	// Set up the session manager and services
	manager := session.NewManager(store, cfg.AutoLogoutExempt)
	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout)

	authService := services.NewAuthService(client, manager)
	chatService := services.NewChatService(client, manager, store)
	pacsService := services.NewPACSService(client, manager, store)

	ctx := context.Background()

	switch os.Args[1] {
	case "signup":
		cmdSignup(ctx, authService, os.Args[2:])
	case "login":
		cmdLogin(ctx, authService, os.Args[2:])
	case "logout":
		authService.Logout()
		fmt.Println("Signed out.")
	case "whoami":
		cmdWhoami(ctx, manager, authService)
	case "chat":
		cmdChat(ctx, cfg, manager, authService, chatService, os.Args[2:])
	case "history":
		cmdHistory(ctx, manager, authService, chatService, os.Args[2:])
	case "pacs":
		cmdPACS(ctx, manager, authService, pacsService, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: medchat <command> [flags]

Commands:
  signup      Create an account and sign in
  login       Sign in
  logout      Sign out
  whoami      Show the signed-in user
  chat        Talk to the imaging agent (interactive, or one-shot with -m)
  history     Show a conversation transcript
  pacs        Manage PACS server configurations
  serve-dev   Run a local development backend`)
}

func prompt(label string) string {
	fmt.Print(label)
	input, err := stdin.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}
	return strings.TrimSpace(input)
}

// readCredentials takes username/password from flags, prompting for whatever
// is missing.
func readCredentials(args []string, name string) (string, string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	fs.Parse(args)

	if *username == "" {
		*username = prompt("Username: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}
	return *username, *password
}

func cmdSignup(ctx context.Context, auth services.AuthServiceProvider, args []string) {
	username, password := readCredentials(args, "signup")
	user, err := auth.Signup(ctx, username, password)
	if err != nil {
		fmt.Println(api.Message(err, "Signup failed"))
		os.Exit(1)
	}
	fmt.Printf("Welcome, %s. You are signed in.\n", user.Username)
}

func cmdLogin(ctx context.Context, auth services.AuthServiceProvider, args []string) {
	username, password := readCredentials(args, "login")
	user, err := auth.Login(ctx, username, password)
	if err != nil {
		fmt.Println(api.Message(err, "Login failed"))
		os.Exit(1)
	}
	fmt.Printf("Signed in as %s.\n", user.Username)
}

func cmdWhoami(ctx context.Context, manager *session.Manager, auth services.AuthServiceProvider) {
	manager.Bootstrap(ctx, auth)
	user := manager.CurrentUser()
	if !manager.Authenticated() || user == nil {
		fmt.Println("Not signed in.")
		os.Exit(1)
	}
	fmt.Printf("%s (%s)\n", user.Username, user.ID)
}

// requireSession bootstraps the manager and exits when no valid session is
// available.
func requireSession(ctx context.Context, manager *session.Manager, auth services.AuthServiceProvider) {
	manager.Bootstrap(ctx, auth)
	if !manager.Authenticated() {
		fmt.Println("Please sign in first: medchat login")
		os.Exit(1)
	}
}

func cmdChat(ctx context.Context, cfg *config.Config, manager *session.Manager, auth services.AuthServiceProvider, chat services.ChatServiceProvider, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	message := fs.String("m", "", "send a single message and exit")
	convID := fs.String("c", "", "conversation id to continue")
	title := fs.String("title", "", "title for a new conversation")
	maxPerPACS := fs.Int("max-studies-per-pacs", 0, "study limit per PACS server")
	maxTotal := fs.Int("max-total-studies", 0, "total study limit")
	evaluation := fs.Bool("evaluation", false, "ask the agent to evaluate its answer")
	fs.Parse(args)

	requireSession(ctx, manager, auth)

	opts := services.ChatOptions{
		MaxStudiesPerPACS: *maxPerPACS,
		MaxTotalStudies:   *maxTotal,
		ReturnEvaluation:  *evaluation,
	}

	conversationID := *convID
	if conversationID == "" {
		name := *title
		if name == "" {
			name = "Chat " + time.Now().Format("2006-01-02 15:04")
		}
		conv, err := chat.StartConversation(name)
		if err != nil {
			fmt.Println("Could not start a conversation:", err)
			os.Exit(1)
		}
		conversationID = conv.ID
	}

	if *message != "" {
		reply, err := chat.Send(ctx, conversationID, *message, opts)
		if err != nil {
			fmt.Println(api.Message(err, "The agent could not answer"))
			os.Exit(1)
		}
		fmt.Println(reply.Content)
		return
	}

	// Interactive loop. Keep the session fresh in the background while the
	// user types.
	go manager.Run(auth, cfg.RefreshInterval)
	defer manager.Stop()

	fmt.Printf("Conversation %s. Type 'exit' to quit.\n", conversationID)
	for {
		input := prompt("You: ")
		if input == "exit" {
			return
		}
		if input == "" {
			continue
		}
		if !manager.Authenticated() {
			fmt.Println("Your session has expired. Please sign in again.")
			return
		}

		reply, err := chat.Send(ctx, conversationID, input, opts)
		if err != nil {
			fmt.Println(api.Message(err, "The agent could not answer"))
			continue
		}
		fmt.Printf("Agent: %s\n", reply.Content)
	}
}

func cmdHistory(ctx context.Context, manager *session.Manager, auth services.AuthServiceProvider, chat services.ChatServiceProvider, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	convID := fs.String("c", "", "conversation id (default: list conversations)")
	remote := fs.Bool("remote", false, "fetch the transcript held by the backend")
	fs.Parse(args)

	if *remote {
		requireSession(ctx, manager, auth)
		messages, err := chat.RemoteTranscript(ctx)
		if err != nil {
			fmt.Println(api.Message(err, "Could not load chat history"))
			os.Exit(1)
		}
		printTranscript(messages)
		return
	}

	if *convID == "" {
		conversations, err := chat.Conversations()
		if err != nil {
			fmt.Println("Could not list conversations:", err)
			os.Exit(1)
		}
		if len(conversations) == 0 {
			fmt.Println("No local conversations yet.")
			return
		}
		for _, conv := range conversations {
			fmt.Printf("%s  %s  %s\n", conv.ID, conv.CreatedAt.Local().Format("2006-01-02 15:04"), conv.Title)
		}
		return
	}

	conv, err := chat.Conversation(*convID)
	if err != nil {
		fmt.Println("Could not load the transcript:", err)
		os.Exit(1)
	}
	messages, err := chat.LocalTranscript(conv.ID)
	if err != nil {
		fmt.Println("Could not load the transcript:", err)
		os.Exit(1)
	}
	fmt.Printf("%s (started %s)\n", conv.Title, conv.CreatedAt.Local().Format("2006-01-02 15:04"))
	printTranscript(messages)
}

func printTranscript(messages []models.ChatMessage) {
	for _, msg := range messages {
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.Role, msg.Content)
	}
}

func cmdPACS(ctx context.Context, manager *session.Manager, auth services.AuthServiceProvider, pacs services.PACSServiceProvider, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: medchat pacs <list|get|add|update|remove> [flags]")
		os.Exit(2)
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("pacs list", flag.ExitOnError)
		cached := fs.Bool("cached", false, "show the last fetched listing without contacting the backend")
		fs.Parse(args[1:])

		var configs []models.PACSConfig
		var err error
		if *cached {
			configs, err = pacs.Cached()
		} else {
			requireSession(ctx, manager, auth)
			configs, err = pacs.List(ctx)
		}
		if err != nil {
			fmt.Println(api.Message(err, "Could not load PACS configurations"))
			os.Exit(1)
		}
		if len(configs) == 0 {
			fmt.Println("No PACS configurations.")
			return
		}
		for _, cfg := range configs {
			printPACS(cfg)
		}
	case "get":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: medchat pacs get <id>")
			os.Exit(2)
		}
		requireSession(ctx, manager, auth)
		cfg, err := pacs.Get(ctx, args[1])
		if err != nil {
			fmt.Println(api.Message(err, "Could not load the PACS configuration"))
			os.Exit(1)
		}
		printPACS(cfg)
	case "add":
		requireSession(ctx, manager, auth)
		cfg := readPACSFlags("pacs add", args[1:])
		created, err := pacs.Create(ctx, cfg)
		if err != nil {
			fmt.Println(api.Message(err, "Could not create the PACS configuration"))
			os.Exit(1)
		}
		fmt.Printf("Created %s\n", created.ID)
	case "update":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: medchat pacs update <id> [flags]")
			os.Exit(2)
		}
		requireSession(ctx, manager, auth)
		cfg := readPACSFlags("pacs update", args[2:])
		updated, err := pacs.Update(ctx, args[1], cfg)
		if err != nil {
			fmt.Println(api.Message(err, "Could not update the PACS configuration"))
			os.Exit(1)
		}
		printPACS(updated)
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: medchat pacs remove <id>")
			os.Exit(2)
		}
		requireSession(ctx, manager, auth)
		if err := pacs.Delete(ctx, args[1]); err != nil {
			fmt.Println(api.Message(err, "Could not delete the PACS configuration"))
			os.Exit(1)
		}
		fmt.Println("Deleted.")
	default:
		fmt.Fprintln(os.Stderr, "Usage: medchat pacs <list|get|add|update|remove> [flags]")
		os.Exit(2)
	}
}

func printPACS(cfg models.PACSConfig) {
	line := fmt.Sprintf("%s  %s  %s", cfg.ID, cfg.DisplayName, cfg.BaseRS)
	if cfg.Location != "" {
		line += "  " + cfg.Location
	}
	if len(cfg.Tags) > 0 {
		line += "  [" + strings.Join(cfg.Tags, ", ") + "]"
	}
	fmt.Println(line)
}

func readPACSFlags(name string, args []string) models.PACSConfig {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	displayName := fs.String("name", "", "display name")
	baseRS := fs.String("url", "", "DICOMweb base URL")
	location := fs.String("location", "", "physical location")
	tags := fs.String("tags", "", "comma-separated tags")
	fs.Parse(args)

	cfg := models.PACSConfig{
		DisplayName: *displayName,
		BaseRS:      *baseRS,
		Location:    *location,
	}
	for _, tag := range strings.Split(*tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			cfg.Tags = append(cfg.Tags, tag)
		}
	}
	return cfg
}

func runDevServer(cfg *config.Config) {
	db, err := sql.Open("sqlite", cfg.DevDBPath)
	if err != nil {
		log.Fatalf("Failed to open dev database: %v", err)
	}
	defer db.Close()

	server, err := devserver.New(db, cfg.DevJWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize dev server: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.DevPort),
		Handler: server.Router(),
	}

	// Graceful shutdown
	go func() {
		log.Printf("Dev server listening on port %d\n", cfg.DevPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down dev server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}
