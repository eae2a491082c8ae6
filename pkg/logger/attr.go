package logger

import (
	"log/slog"
	"time"
)

// Error returns an "error" attribute, or an empty attribute for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// PrincipalID identifies the account a decision was made for.
func PrincipalID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("principal_id", id)
}

// KeyID identifies a stored API key record.
func KeyID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("key_id", id)
}

// KeyPrefix logs the display prefix of an API key. Never pass a raw key.
func KeyPrefix(prefix string) slog.Attr {
	return slog.String("key_prefix", prefix)
}

func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

func Count(name string, n int) slog.Attr {
	return slog.Int(name, n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
