package device

import (
	"context"
	"errors"
	"testing"

	"github.com/facegate-io/facegate/internal/device/devicetest"
)

func TestSessionIsLazyAndReused(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()

	cl := NewClient(fake.Config())
	ctx := context.Background()

	if fake.LoginCount != 0 {
		t.Fatalf("expected no login before first request, got %d", fake.LoginCount)
	}

	if _, err := cl.LoadUsers(ctx, nil); err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}
	if _, err := cl.LoadAccessRules(ctx); err != nil {
		t.Fatalf("LoadAccessRules failed: %v", err)
	}

	if fake.LoginCount != 1 {
		t.Errorf("expected one login for two requests, got %d", fake.LoginCount)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()

	cl := NewClient(fake.Config())
	ctx := context.Background()

	if _, err := cl.LoadUsers(ctx, nil); err != nil {
		t.Fatalf("LoadUsers failed: %v", err)
	}
	if err := cl.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if fake.LogoutCount != 1 {
		t.Errorf("expected one logout, got %d", fake.LogoutCount)
	}

	// Next request must re-authenticate
	if _, err := cl.LoadUsers(ctx, nil); err != nil {
		t.Fatalf("LoadUsers after logout failed: %v", err)
	}
	if fake.LoginCount != 2 {
		t.Errorf("expected re-login after logout, got %d logins", fake.LoginCount)
	}
}

func TestLogoutWithoutSessionIsNoop(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()

	cl := NewClient(fake.Config())
	if err := cl.Logout(context.Background()); err != nil {
		t.Fatalf("Logout without session should be a no-op, got %v", err)
	}
	if fake.LogoutCount != 0 {
		t.Errorf("expected no logout call, got %d", fake.LogoutCount)
	}
}

func TestNon2xxBecomesDeviceError(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()
	fake.FailCreates[ObjectUsers] = true

	cl := NewClient(fake.Config())
	_, err := cl.CreateUser(context.Background(), UserRecord{Name: "Ada"})
	if err == nil {
		t.Fatal("expected error from forced create failure")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected *DeviceError, got %T: %v", err, err)
	}
	if devErr.StatusCode != 500 {
		t.Errorf("expected status 500, got %d", devErr.StatusCode)
	}
	if devErr.Endpoint != "create_objects.fcgi" {
		t.Errorf("unexpected endpoint %q", devErr.Endpoint)
	}
}

func TestCreateUserReturnsAssignedID(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()

	cl := NewClient(fake.Config())
	id, err := cl.CreateUser(context.Background(), UserRecord{Name: "Ada"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero device id")
	}
	if fake.Count(ObjectUsers) != 1 {
		t.Errorf("expected 1 user row on the device, got %d", fake.Count(ObjectUsers))
	}
}

func TestWithSessionAlwaysLogsOut(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()

	cl := NewClient(fake.Config())
	wantErr := errors.New("boom")
	err := cl.WithSession(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}
	if fake.LoginCount != 1 || fake.LogoutCount != 1 {
		t.Errorf("expected login/logout pair, got %d/%d", fake.LoginCount, fake.LogoutCount)
	}
}

func TestWhereIDGreaterThanFilters(t *testing.T) {
	fake := devicetest.New()
	defer fake.Close()
	first := fake.AddRow(ObjectAccessLogs, devicetest.Row{"time": float64(1000), "event": float64(1)})
	fake.AddRow(ObjectAccessLogs, devicetest.Row{"time": float64(2000), "event": float64(2)})

	cl := NewClient(fake.Config())
	logs, err := cl.LoadAccessLogs(context.Background(), WhereIDGreaterThan(ObjectAccessLogs, first))
	if err != nil {
		t.Fatalf("LoadAccessLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 filtered log, got %d", len(logs))
	}
	if logs[0].Event != 2 {
		t.Errorf("wrong row returned: %+v", logs[0])
	}
}
