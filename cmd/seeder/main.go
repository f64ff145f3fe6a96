// Command seeder loads demo loan requests and offers so the marketplace has
// something to show on a fresh database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"tuition-escrow/internal/adapter/repository/mysql"
	"tuition-escrow/internal/config"
	"tuition-escrow/internal/infrastructure/db"
	"tuition-escrow/internal/usecase/marketplace"
	"tuition-escrow/pkg/logging"
)

type options struct {
	Student  string
	School   string
	Company  string
	Requests int
	Offers   bool
	Force    bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("seeder failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opt options
	fs := pflag.NewFlagSet("seeder", pflag.ContinueOnError)
	fs.StringVar(&opt.Student, "student", "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe", "student ledger address")
	fs.StringVar(&opt.School, "school", "rU2RuLbjZL41DgrJQLWJm9TUqSFC5u3VyJ", "school ledger address")
	fs.StringVar(&opt.Company, "company", "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH", "company ledger address")
	fs.IntVarP(&opt.Requests, "requests", "n", 1, "number of loan requests to create")
	fs.BoolVar(&opt.Offers, "offers", true, "add one pending offer per request")
	fs.BoolVar(&opt.Force, "force", false, "seed even if the student already has open requests")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	log := logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), db.LogLevel(cfg.GormLogLevel))
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	uc := marketplace.NewUsecase(mysql.Repos(gdb), mysql.NewGormUoW(gdb), log)
	n, err := seed(context.Background(), uc, opt, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Info("seeding done", "requests", n)
	return nil
}

// seed creates opt.Requests demo requests unless the student already has
// open ones. It returns how many were created.
func seed(ctx context.Context, uc *marketplace.Usecase, opt options, now time.Time) (int, error) {
	if !opt.Force {
		open, err := uc.ListOpenRequests(ctx, "")
		if err != nil {
			return 0, err
		}
		for _, r := range open {
			if r.StudentAddress == opt.Student {
				slog.Info("student already has open requests, skipping", "student", opt.Student)
				return 0, nil
			}
		}
	}

	created := 0
	for i := range opt.Requests {
		r, err := uc.CreateRequest(ctx, demoRequest(opt, now, i))
		if err != nil {
			return created, fmt.Errorf("request %d: %w", i, err)
		}
		created++
		if !opt.Offers {
			continue
		}
		if _, err := uc.CreateOffer(ctx, marketplace.CreateOfferInput{
			RequestID:           r.RequestID,
			CompanyAddress:      opt.Company,
			InterestRate:        decimal.RequireFromString("0.05"),
			WorkObligationYears: 2,
			TermsURI:            "https://example.com/terms/" + r.RequestID,
		}); err != nil {
			return created, fmt.Errorf("offer on %s: %w", r.RequestID, err)
		}
	}
	return created, nil
}

// demoRequest is two equal installments six months apart, starting at the
// next January 1st.
func demoRequest(opt options, now time.Time, i int) marketplace.CreateRequestInput {
	first := time.Date(now.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	grad := first.AddDate(2, 5, 0)
	half := decimal.NewFromInt(2_500_000)
	return marketplace.CreateRequestInput{
		StudentAddress: opt.Student,
		StudentName:    "Demo Student",
		SchoolAddress:  opt.School,
		Program:        fmt.Sprintf("Information Systems (cohort %d)", i+1),
		TotalAmount:    half.Mul(decimal.NewFromInt(2)),
		GraduationDate: &grad,
		Industry:       "Technology",
		Description:    "Funding for final year tuition",
		Installments: []marketplace.InstallmentInput{
			{Amount: half, DueDate: first},
			{Amount: half, DueDate: first.AddDate(0, 6, 0)},
		},
	}
}
