package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
)

// Repository defines persistence operations for the arm intent.
type Repository interface {
	Load(ctx context.Context) (*domain.Intent, error)
	Save(ctx context.Context, intent *domain.Intent) error
}

// FileRepository persists the arm intent to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) of a
// structpb.Struct.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// Field names of the state document.
const (
	fieldArmed     = "armed"
	fieldIgnored   = "ignored_inputs"
	fieldLastActor = "last_actor"
	fieldHostname  = "hostname"
	fieldUsername  = "username"
	fieldTimestamp = "timestamp"
)

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")

	errInvalidPin = errors.New("invalid pin in state file")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the intent from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&document)
}

// Save writes the intent to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, intent *domain.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toStruct(intent)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromStruct converts the state document into the domain Intent.
func fromStruct(document *structpb.Struct) (*domain.Intent, error) {
	fields := document.GetFields()
	intent := &domain.Intent{
		Armed: fields[fieldArmed].GetBoolValue(),
	}

	if raw := fields[fieldTimestamp].GetStringValue(); raw != "" {
		timestamp, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode state timestamp: %w", err)
		}

		intent.Timestamp = timestamp
	}

	if list := fields[fieldIgnored].GetListValue(); list != nil {
		intent.IgnoredInputs = make([]board.ID, 0, len(list.GetValues()))

		for _, value := range list.GetValues() {
			number := value.GetNumberValue()
			if number != math.Trunc(number) || board.ValidateInput(board.ID(number)) != nil {
				return nil, fmt.Errorf("%w: %v", errInvalidPin, number)
			}

			intent.IgnoredInputs = append(intent.IgnoredInputs, board.ID(number))
		}
	}

	if actor := fields[fieldLastActor].GetStructValue(); actor != nil {
		intent.LastActor = &domain.Actor{
			Hostname: actor.GetFields()[fieldHostname].GetStringValue(),
			Username: actor.GetFields()[fieldUsername].GetStringValue(),
		}
	}

	return intent, nil
}

// toStruct converts the domain Intent into the state document.
func toStruct(intent *domain.Intent) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldArmed: intent.Armed,
	}

	if !intent.Timestamp.IsZero() {
		fields[fieldTimestamp] = intent.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	if intent.IgnoredInputs != nil {
		ignored := make([]any, 0, len(intent.IgnoredInputs))
		for _, pin := range intent.IgnoredInputs {
			ignored = append(ignored, int(pin))
		}

		fields[fieldIgnored] = ignored
	}

	if intent.LastActor != nil {
		fields[fieldLastActor] = map[string]any{
			fieldHostname: intent.LastActor.Hostname,
			fieldUsername: intent.LastActor.Username,
		}
	}

	return structpb.NewStruct(fields)
}
