package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/station-engine/pkg/dialog"
	"github.com/jwebster45206/station-engine/pkg/world"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <room.json | rooms-dir>\n", os.Args[0])
		os.Exit(1)
	}

	target := os.Args[1]
	validator := &RoomValidator{}

	info, err := os.Stat(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(target, "*.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		files = matches
	} else {
		files = []string{target}
	}

	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No room files found in %s\n", target)
		os.Exit(1)
	}

	rooms := make(map[string]*world.Room)
	failed := false
	for _, filename := range files {
		room, err := validator.validateFile(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		rooms[room.ID] = room
	}

	// Cross-room checks only make sense when everything parsed.
	if !failed {
		validator.reportExitTargets(rooms)
	}

	if failed {
		os.Exit(1)
	}
	fmt.Printf("All %d room files are valid!\n", len(files))
}

type RoomValidator struct {
	errors []string
}

func (v *RoomValidator) validateFile(filename string) (*world.Room, error) {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return nil, fmt.Errorf("room file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidRoomFilename(nameWithoutExt) {
		return nil, fmt.Errorf("room filename '%s' must be lowercase snake_case (e.g., arrival_bay.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	if !json.Valid(data) {
		return nil, fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var raw world.Room
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	if raw.ID != "" && raw.ID != nameWithoutExt {
		v.errors = append(v.errors, fmt.Sprintf("- room id %q does not match filename %q", raw.ID, nameWithoutExt))
	}
	if raw.ID == "" {
		raw.ID = nameWithoutExt
	}

	room, err := world.Normalize(&raw)
	if err != nil {
		return nil, fmt.Errorf("file %s is malformed: %w", filename, err)
	}

	v.validateRoom(room)

	if len(v.errors) > 0 {
		return nil, fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return room, nil
}

func (v *RoomValidator) validateRoom(room *world.Room) {
	// Every NPC must point at a dialog node that exists and resolves.
	resolver := dialog.NewResolver(nil)
	for _, npc := range room.NPCs {
		if npc.Dialog == "" {
			v.errors = append(v.errors, fmt.Sprintf("- npc %q has no dialog entry", npc.ID))
			continue
		}
		if _, ok := room.Dialog[npc.Dialog]; !ok {
			v.errors = append(v.errors, fmt.Sprintf("- npc %q references unknown dialog node %q", npc.ID, npc.Dialog))
			continue
		}
		if resolver.Resolve(room.Dialog, npc.Dialog) == nil {
			v.errors = append(v.errors, fmt.Sprintf("- dialog entry %q for npc %q did not resolve", npc.Dialog, npc.ID))
		}
	}

	// Dangling option references degrade at runtime but are authoring
	// mistakes worth flagging.
	for nodeID, node := range room.Dialog {
		for _, opt := range node.Options {
			if opt.Next != "" {
				if _, ok := room.Dialog[opt.Next]; !ok {
					v.errors = append(v.errors, fmt.Sprintf("- node %q option %q references unknown node %q", nodeID, opt.Text, opt.Next))
				}
			}
		}
	}

	for direction, exit := range room.Exits {
		if exit.To == "" {
			v.errors = append(v.errors, fmt.Sprintf("- exit %q has no destination", direction))
		}
		if !isValidRoomFilename(exit.To) {
			v.errors = append(v.errors, fmt.Sprintf("- exit %q destination %q must be lowercase snake_case", direction, exit.To))
		}
	}
}

// reportExitTargets lists exits into rooms not present in the authored
// set. Those are generated at runtime, so this is informational only.
func (v *RoomValidator) reportExitTargets(rooms map[string]*world.Room) {
	for id, room := range rooms {
		for direction, exit := range room.Exits {
			if _, ok := rooms[exit.To]; !ok {
				fmt.Printf("note: %s exit %q leads to %q, which will be generated at runtime\n", id, direction, exit.To)
			}
		}
	}
}

var roomFilenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func isValidRoomFilename(name string) bool {
	return roomFilenamePattern.MatchString(name)
}
