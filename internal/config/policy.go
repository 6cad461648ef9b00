package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// PolicyFile mirrors policy.yaml. Absent keys keep the built-in default.
type PolicyFile struct {
	Lockout struct {
		MaxFailedAttempts int    `yaml:"max_failed_attempts"`
		Inactivity        string `yaml:"inactivity"`
	} `yaml:"lockout"`
	Sessions struct {
		Timeout     string `yaml:"timeout"`
		MaxAttempts int    `yaml:"max_attempts"`
		TokenLength int    `yaml:"token_length"`
	} `yaml:"sessions"`
	Challenges struct {
		TTL                string `yaml:"ttl"`
		Digits             int    `yaml:"digits"`
		HighValueThreshold string `yaml:"high_value_threshold"`
	} `yaml:"challenges"`
	Detection struct {
		LoginWindow     string `yaml:"login_window"`
		MaxLogins       int    `yaml:"max_logins"`
		VelocityWindow  string `yaml:"velocity_window"`
		MaxTransactions int    `yaml:"max_transactions"`
		BalanceFraction string `yaml:"balance_fraction"`
	} `yaml:"detection"`
	Limits struct {
		MinDeposit              string `yaml:"min_deposit"`
		MaxDeposit              string `yaml:"max_deposit"`
		MinWithdrawal           string `yaml:"min_withdrawal"`
		DailyWithdrawalLimit    string `yaml:"daily_withdrawal_limit"`
		MaxTransactionAmount    string `yaml:"max_transaction_amount"`
		SavingsTransactionLimit string `yaml:"savings_transaction_limit"`
		InterestRate            string `yaml:"interest_rate"`
	} `yaml:"limits"`
}

// LoadPolicy reads a YAML policy file and overlays it on the defaults.
func LoadPolicy(policyFile string) (models.SecurityPolicy, error) {
	policy := models.DefaultSecurityPolicy()

	var policyPath string
	if filepath.IsAbs(policyFile) {
		policyPath = policyFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return policy, fmt.Errorf("failed to get working directory: %w", err)
		}
		policyPath = filepath.Join(wd, policyFile)
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		return policy, fmt.Errorf("unable to read %s: %w", policyFile, err)
	}

	return ParsePolicy(data)
}

// ParsePolicy overlays raw YAML on the default policy and validates the result.
func ParsePolicy(data []byte) (models.SecurityPolicy, error) {
	policy := models.DefaultSecurityPolicy()

	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return policy, fmt.Errorf("unable to parse policy: %w", err)
	}

	o := overlay{}
	o.int(&policy.MaxFailedAttempts, file.Lockout.MaxFailedAttempts)
	o.duration(&policy.InactivityLock, "lockout.inactivity", file.Lockout.Inactivity)

	o.duration(&policy.SessionTimeout, "sessions.timeout", file.Sessions.Timeout)
	o.int(&policy.MaxSessionAttempts, file.Sessions.MaxAttempts)
	o.int(&policy.TokenLength, file.Sessions.TokenLength)

	o.duration(&policy.ChallengeTTL, "challenges.ttl", file.Challenges.TTL)
	o.int(&policy.ChallengeDigits, file.Challenges.Digits)
	o.amount(&policy.HighValueThreshold, "challenges.high_value_threshold", file.Challenges.HighValueThreshold)

	o.duration(&policy.LoginWindow, "detection.login_window", file.Detection.LoginWindow)
	o.int(&policy.MaxLoginsPerWindow, file.Detection.MaxLogins)
	o.duration(&policy.VelocityWindow, "detection.velocity_window", file.Detection.VelocityWindow)
	o.int(&policy.MaxTransactionsPerWindow, file.Detection.MaxTransactions)
	o.amount(&policy.BalanceFraction, "detection.balance_fraction", file.Detection.BalanceFraction)

	o.amount(&policy.MinDeposit, "limits.min_deposit", file.Limits.MinDeposit)
	o.amount(&policy.MaxDeposit, "limits.max_deposit", file.Limits.MaxDeposit)
	o.amount(&policy.MinWithdrawal, "limits.min_withdrawal", file.Limits.MinWithdrawal)
	o.amount(&policy.DailyWithdrawalLimit, "limits.daily_withdrawal_limit", file.Limits.DailyWithdrawalLimit)
	o.amount(&policy.MaxTransactionAmount, "limits.max_transaction_amount", file.Limits.MaxTransactionAmount)
	o.amount(&policy.SavingsTransactionLimit, "limits.savings_transaction_limit", file.Limits.SavingsTransactionLimit)
	o.amount(&policy.InterestRate, "limits.interest_rate", file.Limits.InterestRate)

	if o.err != nil {
		return policy, o.err
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("invalid policy: %w", err)
	}
	return policy, nil
}

// overlay applies non-empty values and keeps the first parse error
type overlay struct {
	err error
}

func (o *overlay) int(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (o *overlay) duration(dst *time.Duration, key, v string) {
	if v == "" || o.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		o.err = fmt.Errorf("invalid duration for %s: %q (%w)", key, v, err)
		return
	}
	*dst = d
}

func (o *overlay) amount(dst *decimal.Decimal, key, v string) {
	if v == "" || o.err != nil {
		return
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		o.err = fmt.Errorf("invalid amount for %s: %q (%w)", key, v, err)
		return
	}
	*dst = d
}
