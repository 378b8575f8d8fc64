package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^]+$`)

// PromptForSymbols asks for a comma-separated list of ticker symbols
func PromptForSymbols() ([]string, error) {
	var input string
	prompt := &survey.Input{
		Message: "Enter ticker symbols (comma separated, e.g. AAPL,MSFT,GOOG):",
		Help:    "At least two symbols are needed to build a portfolio",
	}

	err := survey.AskOne(prompt, &input, survey.WithValidator(func(val interface{}) error {
		symbols := splitSymbols(val.(string))
		if len(symbols) < 2 {
			return fmt.Errorf("need at least 2 symbols")
		}
		for _, sym := range symbols {
			if !symbolPattern.MatchString(sym) {
				return fmt.Errorf("invalid ticker %q", sym)
			}
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}

	return splitSymbols(input), nil
}

// PromptForStrategy asks which allocation strategy to run
func PromptForStrategy() (string, error) {
	var strategy string
	prompt := &survey.Select{
		Message: "Choose an allocation strategy:",
		Options: []string{
			"max_sharpe",
			"min_volatility",
			"max_utility",
			"target_return",
		},
		Default: "max_sharpe",
	}
	if err := survey.AskOne(prompt, &strategy); err != nil {
		return "", err
	}
	return strategy, nil
}

// PromptForDateRange asks for an optional history window. Empty answers
// leave the bound open.
func PromptForDateRange() (start, end string, err error) {
	dateValidator := func(val interface{}) error {
		return validateDateInput(val.(string))
	}

	if err = survey.AskOne(&survey.Input{
		Message: "History start date (YYYY-MM-DD, empty for full history):",
	}, &start, survey.WithValidator(dateValidator)); err != nil {
		return "", "", err
	}
	if err = survey.AskOne(&survey.Input{
		Message: "History end date (YYYY-MM-DD, empty for today):",
	}, &end, survey.WithValidator(dateValidator)); err != nil {
		return "", "", err
	}

	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start != "" && end != "" && end < start {
		return "", "", fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return start, end, nil
}

// PromptForRiskFreeRate asks for the annual risk-free rate
func PromptForRiskFreeRate(def float64) (float64, error) {
	return promptForNumber(&survey.Input{
		Message: "Annual risk-free rate (decimal, e.g. 0.03):",
		Default: strconv.FormatFloat(def, 'g', -1, 64),
	}, func(v float64) error {
		if v < 0 || v >= 1 {
			return fmt.Errorf("must be in [0, 1)")
		}
		return nil
	})
}

// PromptForRiskAversion asks for the utility lambda
func PromptForRiskAversion(def float64) (float64, error) {
	return promptForNumber(&survey.Input{
		Message: "Risk aversion λ (higher = more conservative):",
		Default: strconv.FormatFloat(def, 'g', -1, 64),
	}, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be greater than zero")
		}
		return nil
	})
}

// PromptForTargetReturn asks for the annual return target
func PromptForTargetReturn() (float64, error) {
	return promptForNumber(&survey.Input{
		Message: "Target annual return (decimal, e.g. 0.12):",
	}, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be greater than zero")
		}
		return nil
	})
}

// promptForNumber asks a single numeric question and re-asks until the
// answer parses and passes check
func promptForNumber(prompt *survey.Input, check func(float64) error) (float64, error) {
	var input string
	err := survey.AskOne(prompt, &input, survey.WithValidator(func(val interface{}) error {
		v, err := parseNumberInput(val.(string))
		if err != nil {
			return err
		}
		return check(v)
	}))
	if err != nil {
		return 0, err
	}
	return parseNumberInput(input)
}

// validateDateInput accepts an empty string or a YYYY-MM-DD date
func validateDateInput(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("use YYYY-MM-DD")
	}
	return nil
}

func parseNumberInput(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	return v, nil
}

func splitSymbols(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := strings.ToUpper(strings.TrimSpace(p)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
