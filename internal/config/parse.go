package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var ErrInvalidSigma = errors.New("sigma must be a non-negative number")

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseOptionalAddress returns the zero address for an empty input.
func ParseOptionalAddress(input string) (common.Address, error) {
	addresses, err := ParseAddresses([]string{input})
	if err != nil || len(addresses) == 0 {
		return common.Address{}, err
	}
	return addresses[0], nil
}

// ParseSigma parses a volatility estimate. Values outside the probe clamp are accepted and clamped later.
func ParseSigma(input string) (decimal.Decimal, error) {
	sigma, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidSigma, input)
	}
	if sigma.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidSigma, sigma)
	}
	return sigma, nil
}
