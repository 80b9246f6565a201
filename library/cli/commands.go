package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/booktrack/library-service/library/internal/events"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/migrations"
	"github.com/booktrack/library-service/pkg/auth"
	"github.com/booktrack/library-service/pkg/kafka"
	"github.com/booktrack/library-service/pkg/postgres"
	"github.com/booktrack/library-service/pkg/validate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := postgres.NewPostgresDB(cmd.Context(), &e.cfg.Database, nil)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.Migrate(pool, migrations.MigrationFiles); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSweepCmd(e *env) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark loans past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			day := svc.Today()
			if asOf != "" {
				if day, err = model.ParseDate(asOf); err != nil {
					return errors.Wrap(err, "--as-of")
				}
			}
			overdue, err := svc.SweepOverdue(cmd.Context(), day)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, l := range overdue {
				fmt.Fprintf(out, "loan %d user %d book %d due %s\n", l.ID, l.UserID, l.BookID, l.DueDate)
			}
			fmt.Fprintf(out, "%d overdue as of %s\n", len(overdue), day)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "business day, YYYY-MM-DD (default today)")
	return cmd
}

func newUserCmd(e *env) *cobra.Command {
	var req model.RegisterUserRequest
	var role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a patron or librarian",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Role = model.Role(role)
			if err := validate.NewCustomValidator().Validate(req); err != nil {
				return err
			}
			svc, closeFn, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := svc.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d %s %s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&req.Email, "email", "", "email")
	f.StringVar(&req.Password, "password", "", "password, at least 8 chars")
	f.StringVar(&req.FirstName, "first", "", "first name")
	f.StringVar(&req.LastName, "last", "", "last name")
	f.StringVar(&role, "role", string(model.RoleUser), "USER or ADMIN")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(add)
	return user
}

func newBookCmd(e *env) *cobra.Command {
	var (
		req             model.CreateBookRequest
		isbn, publisher string
		year            int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			if f.Changed("isbn") {
				req.Isbn = &isbn
			}
			if f.Changed("publisher") {
				req.Publisher = &publisher
			}
			if f.Changed("year") {
				req.PublishYear = &year
			}
			if err := validate.NewCustomValidator().Validate(req); err != nil {
				return err
			}
			svc, closeFn, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			book, err := svc.CreateBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "book %d %q by %s\n", book.ID, book.Title, book.Author)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&req.Title, "title", "", "title")
	f.StringVar(&req.Author, "author", "", "author")
	f.StringVar(&isbn, "isbn", "", "ISBN-10 or ISBN-13")
	f.StringVar(&publisher, "publisher", "", "publisher")
	f.IntVar(&year, "year", 0, "publish year")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("author")

	book := &cobra.Command{Use: "book", Short: "Manage the catalog"}
	book.AddCommand(add)
	return book
}

func newEventsCmd(e *env) *cobra.Command {
	var group string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print loan events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !e.cfg.Kafka.Enabled() {
				return errors.New("kafka is not configured")
			}
			out := cmd.OutOrStdout()
			consumer := events.NewConsumer(func(_ context.Context, ev kafka.EventLoan) error {
				_, err := fmt.Fprintf(out, "%s %-14s loan=%d user=%d book=%d\n",
					ev.Timestamp.Format(time.RFC3339), ev.Type, ev.LoanID, ev.UserID, ev.BookID)
				return err
			}, e.log)
			return events.Consume(cmd.Context(), e.cfg.Kafka, group, consumer)
		},
	}
	tail.Flags().StringVar(&group, "group", "libraryctl", "consumer group id")

	ev := &cobra.Command{Use: "events", Short: "Loan event stream"}
	ev.AddCommand(tail)
	return ev
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := e.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := svc.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			token, expiresAt, err := auth.IssueToken([]byte(e.cfg.Auth.JWTSecret), auth.Identity{
				UserID: user.ID,
				Role:   auth.Role(user.Role),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
