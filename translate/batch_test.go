package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/xcloc/langtable"
)

// ---------------------------------------------------------------------------
// Partition
// ---------------------------------------------------------------------------

func keysN(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key %03d", i)
	}
	return keys
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 100, nil},
		{"single short batch", 3, 100, []int{3}},
		{"exact multiple", 200, 100, []int{100, 100}},
		{"last batch shorter", 250, 100, []int{100, 100, 50}},
		{"size one", 3, 1, []int{1, 1, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			keys := keysN(tc.n)
			batches, err := Partition(keys, tc.size)
			if err != nil {
				t.Fatalf("Partition: %v", err)
			}

			var sizes []int
			var joined []string
			for _, b := range batches {
				sizes = append(sizes, len(b))
				joined = append(joined, b...)
			}
			if diff := cmp.Diff(tc.sizes, sizes); diff != "" {
				t.Fatalf("batch sizes mismatch (-want +got):\n%s", diff)
			}
			if tc.n > 0 {
				if diff := cmp.Diff(keys, joined); diff != "" {
					t.Fatalf("concatenation does not reconstruct input (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestPartitionKeepsDuplicates(t *testing.T) {
	batches, err := Partition([]string{"a", "a", "b"}, 2)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if diff := cmp.Diff([][]string{{"a", "a"}, {"b"}}, batches); diff != "" {
		t.Fatalf("Partition mismatch (-want +got):\n%s", diff)
	}
}

func TestPartitionRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Partition([]string{"a"}, size); err == nil {
			t.Errorf("Partition(size=%d) should fail", size)
		}
	}
}

func TestPartitionBatchesDoNotAlias(t *testing.T) {
	keys := []string{"a", "b", "c"}
	batches, _ := Partition(keys, 2)
	batches[0] = append(batches[0], "x")
	if keys[2] != "c" {
		t.Fatalf("appending to a batch overwrote the input: %v", keys)
	}
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

func TestBuildUserPrompt(t *testing.T) {
	got := buildUserPrompt([]string{"Hello", "Line one\nLine two", "A\tB"}, "French")

	if !strings.HasPrefix(got, "Translate to French. Keep all %@, %lld, %1$@ placeholders exact. Return numbered list only:\n\n") {
		t.Fatalf("unexpected prompt header:\n%s", got)
	}
	for _, want := range []string{"1|Hello\n", `2|Line one\nLine two` + "\n", `3|A\tB` + "\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestResolvedPrompt(t *testing.T) {
	opts := Options{}
	if got := opts.resolvedPrompt("German"); got != "Translate to German. Keep placeholders exact." {
		t.Fatalf("default prompt = %q", got)
	}

	opts.SystemPrompt = "You localize iOS apps into {{targetLang}}."
	if got := opts.resolvedPrompt("German"); got != "You localize iOS apps into German." {
		t.Fatalf("custom prompt = %q", got)
	}
}

// ---------------------------------------------------------------------------
// translateBatch
// ---------------------------------------------------------------------------

var french = langtable.Locale{Code: "fr", Name: "French"}

func TestTranslateBatchFailsSoft(t *testing.T) {
	batch := []string{"Hello", "Bye"}
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		c       CompleterFunc
		wantErr error
	}{
		{
			name: "transport error",
			c: func(ctx context.Context, sys, user string) (string, error) {
				return "", boom
			},
			wantErr: boom,
		},
		{
			name: "blank response",
			c: func(ctx context.Context, sys, user string) (string, error) {
				return "  \n\t", nil
			},
			wantErr: errEmptyResponse,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := translateBatch(context.Background(), tc.c, nil, french, "sys", batch)
			if !res.Fallback {
				t.Fatal("Fallback = false, want true")
			}
			if !errors.Is(res.Err, tc.wantErr) {
				t.Fatalf("Err = %v, want %v", res.Err, tc.wantErr)
			}
			if diff := cmp.Diff(batch, res.Translations); diff != "" {
				t.Fatalf("translations are not the source (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]bool{true, true}, res.FellBack); diff != "" {
				t.Fatalf("FellBack mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateBatchSendsPrompts(t *testing.T) {
	var gotSys, gotUser string
	c := CompleterFunc(func(ctx context.Context, sys, user string) (string, error) {
		gotSys, gotUser = sys, user
		return "1|Bonjour\n2|Au revoir", nil
	})

	res := translateBatch(context.Background(), c, nil, french, "Translate to French.", []string{"Hello", "Bye"})
	if res.Err != nil || res.Fallback {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if diff := cmp.Diff([]string{"Bonjour", "Au revoir"}, res.Translations); diff != "" {
		t.Fatalf("translations mismatch (-want +got):\n%s", diff)
	}
	if gotSys != "Translate to French." {
		t.Fatalf("system prompt = %q", gotSys)
	}
	if !strings.Contains(gotUser, "1|Hello\n2|Bye\n") {
		t.Fatalf("user prompt = %q", gotUser)
	}
}

func TestLimiter(t *testing.T) {
	if (&Options{}).limiter() != nil {
		t.Fatal("no limiter expected when RequestsPerSecond is 0")
	}
	lim := (&Options{RequestsPerSecond: 2.5}).limiter()
	if lim == nil || lim.Burst() != 2 {
		t.Fatalf("limiter = %v", lim)
	}
	if lim := (&Options{RequestsPerSecond: 0.5}).limiter(); lim.Burst() != 1 {
		t.Fatalf("burst = %d, want 1", lim.Burst())
	}
}
