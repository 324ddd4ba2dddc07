package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campuslib/internal/config"
	"campuslib/internal/db"
	"campuslib/internal/logging"
	"campuslib/internal/model"
	"campuslib/internal/repository"
)

type seedUser struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
}

var sampleBooks = []model.Book{
	{Title: "Introduction to Algorithms", Author: "Thomas H. Cormen", ISBN: "9780262033848", Category: "Computer Science", Publisher: "MIT Press", TotalCopies: 5, AvailableCopies: 3, ShelfLocation: "CS-A1"},
	{Title: "Clean Code", Author: "Robert C. Martin", ISBN: "9780132350884", Category: "Software Engineering", Publisher: "Prentice Hall", TotalCopies: 4, AvailableCopies: 2, ShelfLocation: "SE-B2"},
	{Title: "The Design of Everyday Things", Author: "Don Norman", ISBN: "9780465050659", Category: "Design", Publisher: "Basic Books", TotalCopies: 3, AvailableCopies: 1, ShelfLocation: "DES-C3"},
	{Title: "Database System Concepts", Author: "Abraham Silberschatz", ISBN: "9780078022159", Category: "Computer Science", Publisher: "McGraw-Hill", TotalCopies: 6, AvailableCopies: 4, ShelfLocation: "CS-A2"},
	{Title: "Operating System Concepts", Author: "Abraham Silberschatz", ISBN: "9781118063330", Category: "Computer Science", Publisher: "Wiley", TotalCopies: 5, AvailableCopies: 3, ShelfLocation: "CS-A3"},
	{Title: "Artificial Intelligence: A Modern Approach", Author: "Stuart Russell", ISBN: "9780136042594", Category: "Artificial Intelligence", Publisher: "Prentice Hall", TotalCopies: 4, AvailableCopies: 2, ShelfLocation: "AI-D1"},
	{Title: "Computer Networks", Author: "Andrew S. Tanenbaum", ISBN: "9780132126953", Category: "Computer Science", Publisher: "Prentice Hall", TotalCopies: 5, AvailableCopies: 3, ShelfLocation: "CS-A4"},
	{Title: "The Pragmatic Programmer", Author: "Andrew Hunt", ISBN: "9780201616224", Category: "Software Engineering", Publisher: "Addison-Wesley", TotalCopies: 4, AvailableCopies: 2, ShelfLocation: "SE-B3"},
	{Title: "Structure and Interpretation of Computer Programs", Author: "Harold Abelson", ISBN: "9780262510875", Category: "Computer Science", Publisher: "MIT Press", TotalCopies: 3, AvailableCopies: 1, ShelfLocation: "CS-A5"},
	{Title: "Machine Learning: A Probabilistic Perspective", Author: "Kevin P. Murphy", ISBN: "9780262018029", Category: "Machine Learning", Publisher: "MIT Press", TotalCopies: 4, AvailableCopies: 2, ShelfLocation: "ML-E1"},
	{Title: "Deep Learning", Author: "Ian Goodfellow", ISBN: "9780262035613", Category: "Machine Learning", Publisher: "MIT Press", TotalCopies: 3, AvailableCopies: 1, ShelfLocation: "ML-E2"},
	{Title: "Data Structures and Algorithms in Python", Author: "Michael T. Goodrich", ISBN: "9781118290279", Category: "Computer Science", Publisher: "Wiley", TotalCopies: 5, AvailableCopies: 3, ShelfLocation: "CS-A6"},
	{Title: "System Design Interview", Author: "Alex Xu", ISBN: "9781736049116", Category: "Software Engineering", Publisher: "ByteByteGo", TotalCopies: 4, AvailableCopies: 2, ShelfLocation: "SE-B4"},
	{Title: "Refactoring", Author: "Martin Fowler", ISBN: "9780134757599", Category: "Software Engineering", Publisher: "Addison-Wesley", TotalCopies: 3, AvailableCopies: 1, ShelfLocation: "SE-B5"},
	{Title: "You Don't Know JS", Author: "Kyle Simpson", ISBN: "9781491924464", Category: "Web Development", Publisher: "O'Reilly Media", TotalCopies: 5, AvailableCopies: 3, ShelfLocation: "WEB-F1"},
}

var sampleUsers = []seedUser{
	{Name: "Admin User", Email: "admin@library.com", Password: "admin123", Role: model.RoleAdmin},
	{Name: "Librarian One", Email: "librarian@library.com", Password: "librarian123", Role: model.RoleLibrarian},
	{Name: "John Student", Email: "student@library.com", Password: "student123", Role: model.RoleStudent},
	{Name: "Jane Faculty", Email: "faculty@library.com", Password: "faculty123", Role: model.RoleFaculty},
	{Name: "Bob Student", Email: "bob@library.com", Password: "student123", Role: model.RoleStudent},
	{Name: "Alice Faculty", Email: "alice@library.com", Password: "faculty123", Role: model.RoleFaculty},
}

var (
	reset    bool
	driver   string
	dsn      string
	hashCost = bcrypt.DefaultCost
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample books and accounts into the library database",
	Long: `Seed creates the sample catalog and one account per role.

Existing books (matched by ISBN) and accounts (matched by email) are updated
in place. With --reset every table is dropped and recreated first.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.Init(cfg.LogLevel)
		if driver == "" {
			driver = cfg.DBDriver
		}
		if dsn == "" {
			dsn = cfg.DatabaseDSN
		}

		gormDB, err := db.Open(driver, dsn)
		if err != nil {
			return err
		}
		if reset || cfg.ResetDB {
			logger.Warn("dropping all tables")
			if err := db.Reset(gormDB); err != nil {
				return err
			}
		}
		if err := db.Migrate(gormDB); err != nil {
			return err
		}

		result, err := seed(cmd.Context(), repository.NewStore(gormDB))
		if err != nil {
			return err
		}
		logger.Info("seed completed",
			"books_created", result.BooksCreated,
			"books_updated", result.BooksUpdated,
			"users_created", result.UsersCreated,
			"users_updated", result.UsersUpdated,
		)
		for _, u := range sampleUsers {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s / %s\n", u.Role, u.Email, u.Password)
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate all tables before seeding")
	rootCmd.Flags().StringVar(&driver, "driver", "", "Database driver (mysql, postgres, sqlite); defaults to DB_DRIVER")
	rootCmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN; defaults to DATABASE_DSN")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

type seedResult struct {
	BooksCreated, BooksUpdated int
	UsersCreated, UsersUpdated int
}

// seed upserts the sample catalog and accounts in one transaction.
func seed(ctx context.Context, store repository.Store) (seedResult, error) {
	var result seedResult
	err := store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		for _, sample := range sampleBooks {
			book := sample
			existing, err := tx.Books().FindByISBN(ctx, book.ISBN)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Books().Create(ctx, &book); err != nil {
					return fmt.Errorf("create book %s: %w", book.ISBN, err)
				}
				result.BooksCreated++
			case err != nil:
				return fmt.Errorf("find book %s: %w", book.ISBN, err)
			default:
				book.ID = existing.ID
				book.CreatedAt = existing.CreatedAt
				if err := tx.Books().Update(ctx, &book); err != nil {
					return fmt.Errorf("update book %s: %w", book.ISBN, err)
				}
				result.BooksUpdated++
			}
		}

		for _, sample := range sampleUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(sample.Password), hashCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user := model.User{Name: sample.Name, Email: sample.Email, Role: sample.Role, PasswordHash: string(hash)}

			existing, err := tx.Users().FindByEmail(ctx, user.Email)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Users().Create(ctx, &user); err != nil {
					return fmt.Errorf("create user %s: %w", user.Email, err)
				}
				result.UsersCreated++
			case err != nil:
				return fmt.Errorf("find user %s: %w", user.Email, err)
			default:
				user.ID = existing.ID
				user.CreatedAt = existing.CreatedAt
				if err := tx.Users().Update(ctx, &user); err != nil {
					return fmt.Errorf("update user %s: %w", user.Email, err)
				}
				result.UsersUpdated++
			}
		}
		return nil
	})
	return result, err
}
