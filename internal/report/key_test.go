package report

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	before := time.Now().UnixMilli()
	key := ObjectKey("images", "photo.jpg")
	after := time.Now().UnixMilli()

	prefix, rest, ok := strings.Cut(key, "/")
	if !ok || prefix != "images" {
		t.Fatalf("key %q missing images/ prefix", key)
	}
	stamp, name, ok := strings.Cut(rest, "_")
	if !ok {
		t.Fatalf("key %q missing timestamp separator", key)
	}
	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		t.Fatalf("key %q timestamp: %v", key, err)
	}
	if ms < before || ms > after {
		t.Errorf("timestamp %d outside [%d, %d]", ms, before, after)
	}
	if name != "photo.jpg" {
		t.Errorf("name = %q, want %q", name, "photo.jpg")
	}
}

func TestObjectKeySanitizesName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report photo.jpg", "report_photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{"clip(1).m4a", "clip_1_.m4a"},
		{"", "file"},
		{"..", "file"},
	}
	for _, tt := range tests {
		key := ObjectKey("audio", tt.in)
		if !strings.HasSuffix(key, "_"+tt.want) {
			t.Errorf("ObjectKey(audio, %q) = %q, want suffix _%q", tt.in, key, tt.want)
		}
	}
}
