package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sagarc03/dams"
	"github.com/sagarc03/dams/config"
	"github.com/sagarc03/dams/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage login sessions",
}

var sessionIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a session for a user",
	Long: `Register a user in the users table and store a new session for it in
Redis. The session ID is printed and can be sent as the "sessionId" cookie
or as "Authorization: Bearer <id>".

Missing values are prompted for interactively.

Examples:
  # Prompt for everything
  dams session issue

  # Non-interactive
  dams session issue --user-id u-42 --email ana@example.com --name Ana --role user`,
	RunE: runSessionIssue,
}

var (
	issueUserID string
	issueEmail  string
	issueName   string
	issueRole   string
)

func init() {
	sessionIssueCmd.Flags().StringVar(&issueUserID, "user-id", "", "user ID")
	sessionIssueCmd.Flags().StringVar(&issueEmail, "email", "", "user email")
	sessionIssueCmd.Flags().StringVar(&issueName, "name", "", "display name")
	sessionIssueCmd.Flags().StringVar(&issueRole, "role", "", "role: admin, user, viewer")

	sessionCmd.AddCommand(sessionIssueCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if cfg.Session.Backend != "redis" {
		return fmt.Errorf("session issue requires the redis session backend, got %q", cfg.Session.Backend)
	}

	sess, err := promptSession()
	if err != nil {
		return handlePromptError(err)
	}

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.GetRepo().UpsertUser(ctx, dams.User{
		ID:    sess.UserID,
		Name:  sess.Name,
		Email: sess.Email,
		Role:  sess.Role,
	}); err != nil {
		return fmt.Errorf("register user: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.Redis.Addr,
		Password: cfg.Session.Redis.Password,
		DB:       cfg.Session.Redis.DB,
	})
	store := session.NewRedisStore(client, cfg.Session.TTL)
	defer func() { _ = store.Close() }()

	id, err := store.Create(ctx, sess)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

// promptSession fills the fields not given as flags.
func promptSession() (session.Session, error) {
	sess := session.Session{
		UserID: issueUserID,
		Email:  issueEmail,
		Name:   issueName,
	}

	if sess.UserID == "" {
		userID, err := (&promptui.Prompt{
			Label: "User ID",
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("user ID is required")
				}
				return nil
			},
		}).Run()
		if err != nil {
			return session.Session{}, err
		}
		sess.UserID = strings.TrimSpace(userID)
	}

	if sess.Email == "" {
		email, err := (&promptui.Prompt{Label: "Email"}).Run()
		if err != nil {
			return session.Session{}, err
		}
		sess.Email = email
	}

	if sess.Name == "" {
		name, err := (&promptui.Prompt{Label: "Name"}).Run()
		if err != nil {
			return session.Session{}, err
		}
		sess.Name = name
	}

	if issueRole == "" {
		roleSelect := promptui.Select{
			Label: "Role",
			Items: []dams.Role{dams.RoleUser, dams.RoleViewer, dams.RoleAdmin},
		}
		_, picked, err := roleSelect.Run()
		if err != nil {
			return session.Session{}, err
		}
		issueRole = picked
	}

	role, err := dams.ParseRole(issueRole)
	if err != nil {
		return session.Session{}, err
	}
	sess.Role = role

	return sess, nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
