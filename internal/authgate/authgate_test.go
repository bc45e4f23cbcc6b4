package authgate

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goodhaul/incentive/pkg/incentive"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "incentive-test"
)

func mustValidator(test *testing.T) *Validator {
	test.Helper()
	validator, err := New(Config{
		SigningKey: []byte(testSigningKey),
		Issuer:     testIssuer,
		CookieName: "session",
	})
	if err != nil {
		test.Fatalf("validator: %v", err)
	}
	return validator
}

func signToken(test *testing.T, claims *Claims, key string) string {
	test.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		test.Fatalf("token signing failed: %v", err)
	}
	return signed
}

func registeredClaims(issuer string, expiresIn time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(expiresIn)),
	}
}

func TestResolveDriverActor(test *testing.T) {
	test.Parallel()
	validator := mustValidator(test)
	token := signToken(test, &Claims{
		UserID:           "user-1",
		Role:             "driver",
		DriverProfileID:  "driver-1",
		RegisteredClaims: registeredClaims(testIssuer, time.Hour),
	}, testSigningKey)

	actor, err := validator.ResolveActor(token)
	if err != nil {
		test.Fatalf("resolve: %v", err)
	}
	if actor.Role != incentive.RoleDriver {
		test.Fatalf("expected driver role, got %s", actor.Role)
	}
	if actor.DriverProfileID.String() != "driver-1" {
		test.Fatalf("expected driver profile claim, got %s", actor.DriverProfileID)
	}
}

func TestResolveSponsorActorRequiresSponsorClaim(test *testing.T) {
	test.Parallel()
	validator := mustValidator(test)
	token := signToken(test, &Claims{
		UserID:           "user-1",
		Role:             "sponsor",
		RegisteredClaims: registeredClaims(testIssuer, time.Hour),
	}, testSigningKey)

	if _, err := validator.ResolveActor(token); !errors.Is(err, ErrInvalidToken) {
		test.Fatalf("expected ErrInvalidToken for missing sponsor claim, got %v", err)
	}
}

func TestResolveRejectsWrongKey(test *testing.T) {
	test.Parallel()
	validator := mustValidator(test)
	token := signToken(test, &Claims{
		UserID:           "user-1",
		Role:             "admin",
		RegisteredClaims: registeredClaims(testIssuer, time.Hour),
	}, "some-other-key")

	if _, err := validator.ResolveActor(token); !errors.Is(err, ErrInvalidToken) {
		test.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestResolveRejectsWrongIssuer(test *testing.T) {
	test.Parallel()
	validator := mustValidator(test)
	token := signToken(test, &Claims{
		UserID:           "user-1",
		Role:             "admin",
		RegisteredClaims: registeredClaims("someone-else", time.Hour),
	}, testSigningKey)

	if _, err := validator.ResolveActor(token); !errors.Is(err, ErrInvalidToken) {
		test.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestResolveRejectsExpiredToken(test *testing.T) {
	test.Parallel()
	validator := mustValidator(test)
	token := signToken(test, &Claims{
		UserID:           "user-1",
		Role:             "admin",
		RegisteredClaims: registeredClaims(testIssuer, -time.Hour),
	}, testSigningKey)

	if _, err := validator.ResolveActor(token); !errors.Is(err, ErrInvalidToken) {
		test.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestNewRequiresKeyAndIssuer(test *testing.T) {
	test.Parallel()
	if _, err := New(Config{Issuer: testIssuer}); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected ErrInvalidConfig for missing key, got %v", err)
	}
	if _, err := New(Config{SigningKey: []byte("k")}); !errors.Is(err, ErrInvalidConfig) {
		test.Fatalf("expected ErrInvalidConfig for missing issuer, got %v", err)
	}
}
