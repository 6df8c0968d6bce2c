package desktop

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"testing"

	errs "timemachine/cli/internal/errors"
	"timemachine/cli/internal/logging"
)

type call struct {
	name string
	args []string
}

func fakeSession(goos string, installed map[string]bool, out string, runErr error) (*Session, *[]call) {
	var calls []call
	s := &Session{
		log:  logging.Discard(),
		goos: goos,
		lookPath: func(name string) (string, error) {
			if installed[name] {
				return "/usr/bin/" + name, nil
			}
			return "", exec.ErrNotFound
		},
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, call{name: name, args: args})
			return []byte(out), runErr
		},
	}
	return s, &calls
}

func TestSelectDirectoryPrefersZenity(t *testing.T) {
	s, calls := fakeSession("linux", map[string]bool{"zenity": true, "kdialog": true}, "/home/u/Documents/\n", nil)
	got, err := s.SelectDirectory(context.Background())
	if err != nil {
		t.Fatalf("SelectDirectory() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"/home/u/Documents"}) {
		t.Errorf("SelectDirectory() = %q", got)
	}
	if len(*calls) != 1 || (*calls)[0].name != "zenity" {
		t.Errorf("calls = %+v", *calls)
	}
}

func TestSelectDirectoryFallsBackToKdialog(t *testing.T) {
	s, calls := fakeSession("linux", map[string]bool{"kdialog": true}, "/data\n", nil)
	if _, err := s.SelectDirectory(context.Background()); err != nil {
		t.Fatalf("SelectDirectory() error = %v", err)
	}
	if (*calls)[0].name != "kdialog" {
		t.Errorf("picker = %s, want kdialog", (*calls)[0].name)
	}
}

func TestSelectDirectoryNoPicker(t *testing.T) {
	s, _ := fakeSession("linux", nil, "", nil)
	if _, err := s.SelectDirectory(context.Background()); !errs.Is(err, errs.Unavailable) {
		t.Errorf("error = %v, want unavailable", err)
	}
}

func TestSelectDirectoryPickerFailure(t *testing.T) {
	s, _ := fakeSession("linux", map[string]bool{"zenity": true}, "", errors.New("display not set"))
	if _, err := s.SelectDirectory(context.Background()); !errs.Is(err, errs.Unavailable) {
		t.Errorf("error = %v, want unavailable", err)
	}
}

func TestOpenURLUsesPlatformOpener(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{goos: "linux", want: "xdg-open"},
		{goos: "darwin", want: "open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			s, calls := fakeSession(tt.goos, map[string]bool{tt.want: true}, "", nil)
			if err := s.OpenURL(context.Background(), "https://example.com/docs"); err != nil {
				t.Fatalf("OpenURL() error = %v", err)
			}
			want := []call{{name: tt.want, args: []string{"https://example.com/docs"}}}
			if !reflect.DeepEqual(*calls, want) {
				t.Errorf("calls = %+v, want %+v", *calls, want)
			}
		})
	}
}
