package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/example/library-circulation/internal/circulation"
)

// Config captures environment driven configuration values for the library service.
type Config struct {
	HTTPPort                 int
	SQLiteDSN                string
	LoanDurationDays         int
	DailyPenaltyFee          circulation.Cents
	PenaltyBlockingThreshold circulation.Cents
	PickupWindowDays         int
	DefaultMaxActiveLoans    int
}

// Load parses configuration values from the current process environment.
//
// Every value has a sensible default; set values are validated and all
// invalid names are reported in one error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:                 8080,
		SQLiteDSN:                "file:library.db",
		LoanDurationDays:         14,
		DailyPenaltyFee:          100,
		PenaltyBlockingThreshold: 1000,
		PickupWindowDays:         3,
		DefaultMaxActiveLoans:    5,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("LIBRARY_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "LIBRARY_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("LIBRARY_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if daysValue := strings.TrimSpace(os.Getenv("LIBRARY_LOAN_DURATION_DAYS")); daysValue != "" {
		days, err := strconv.Atoi(daysValue)
		if err != nil || days <= 0 {
			invalid = append(invalid, "LIBRARY_LOAN_DURATION_DAYS")
		} else {
			cfg.LoanDurationDays = days
		}
	}

	if feeValue := strings.TrimSpace(os.Getenv("LIBRARY_DAILY_PENALTY_FEE")); feeValue != "" {
		fee, err := circulation.ParseAmount(feeValue)
		if err != nil || fee <= 0 {
			invalid = append(invalid, "LIBRARY_DAILY_PENALTY_FEE")
		} else {
			cfg.DailyPenaltyFee = fee
		}
	}

	if thresholdValue := strings.TrimSpace(os.Getenv("LIBRARY_PENALTY_BLOCKING_THRESHOLD")); thresholdValue != "" {
		threshold, err := circulation.ParseAmount(thresholdValue)
		if err != nil || threshold <= 0 {
			invalid = append(invalid, "LIBRARY_PENALTY_BLOCKING_THRESHOLD")
		} else {
			cfg.PenaltyBlockingThreshold = threshold
		}
	}

	if windowValue := strings.TrimSpace(os.Getenv("LIBRARY_PICKUP_WINDOW_DAYS")); windowValue != "" {
		window, err := strconv.Atoi(windowValue)
		if err != nil || window <= 0 {
			invalid = append(invalid, "LIBRARY_PICKUP_WINDOW_DAYS")
		} else {
			cfg.PickupWindowDays = window
		}
	}

	if loansValue := strings.TrimSpace(os.Getenv("LIBRARY_DEFAULT_MAX_ACTIVE_LOANS")); loansValue != "" {
		loans, err := strconv.Atoi(loansValue)
		if err != nil || loans <= 0 {
			invalid = append(invalid, "LIBRARY_DEFAULT_MAX_ACTIVE_LOANS")
		} else {
			cfg.DefaultMaxActiveLoans = loans
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
