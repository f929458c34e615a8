package config

import (
	"encoding/json"
	"testing"
)

func TestParseValidTaskConfig(t *testing.T) {
	configJSON := `{
		"id": "capture-task-1",
		"workers": 4,
		"dispatch_strategy": "flow-hash",
		"reporters": [
			{
				"name": "kafka",
				"config": {"endpoint": "localhost:9092"}
			}
		]
	}`

	tc, err := ParseTaskConfig([]byte(configJSON))
	if err != nil {
		t.Fatalf("Failed to parse task config: %v", err)
	}

	if tc.ID != "capture-task-1" {
		t.Errorf("Expected ID capture-task-1, got %s", tc.ID)
	}
	if tc.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", tc.Workers)
	}
	if tc.DispatchStrategy != "flow-hash" {
		t.Errorf("Expected dispatch strategy flow-hash, got %s", tc.DispatchStrategy)
	}
	if len(tc.Reporters) != 1 {
		t.Fatalf("Expected 1 reporter, got %d", len(tc.Reporters))
	}
	if tc.Reporters[0].Name != "kafka" {
		t.Errorf("Expected reporter name kafka, got %s", tc.Reporters[0].Name)
	}
}

func TestParseMissingTaskID(t *testing.T) {
	configJSON := `{
		"reporters": [
			{"name": "kafka", "config": {}}
		]
	}`

	_, err := ParseTaskConfig([]byte(configJSON))
	if err == nil {
		t.Error("Expected error for missing task ID, got nil")
	}
}

func TestParseMissingReporters(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"reporters": []
	}`

	_, err := ParseTaskConfig([]byte(configJSON))
	if err == nil {
		t.Error("Expected error for missing reporters, got nil")
	}
}

func TestParseEmptyReporterName(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"reporters": [
			{"name": "", "config": {}}
		]
	}`

	_, err := ParseTaskConfig([]byte(configJSON))
	if err == nil {
		t.Error("Expected error for empty reporter name, got nil")
	}
}

func TestParseDefaultWorkers(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"workers": 0,
		"reporters": [
			{"name": "kafka", "config": {}}
		]
	}`

	tc, err := ParseTaskConfig([]byte(configJSON))
	if err != nil {
		t.Fatalf("Failed to parse task config: %v", err)
	}
	if tc.Workers != 1 {
		t.Errorf("Expected default workers 1, got %d", tc.Workers)
	}
}

func TestParseDefaultDispatchStrategy(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"reporters": [
			{"name": "kafka", "config": {}}
		]
	}`

	tc, err := ParseTaskConfig([]byte(configJSON))
	if err != nil {
		t.Fatalf("Failed to parse task config: %v", err)
	}
	if tc.DispatchStrategy != "flow-hash" {
		t.Errorf("Expected default dispatch strategy flow-hash, got %s", tc.DispatchStrategy)
	}
}

func TestParseInvalidDispatchStrategy(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"dispatch_strategy": "random",
		"reporters": [
			{"name": "kafka", "config": {}}
		]
	}`

	_, err := ParseTaskConfig([]byte(configJSON))
	if err == nil {
		t.Error("Expected error for invalid dispatch strategy, got nil")
	}
}

func TestParseDefaultChannelCapacity(t *testing.T) {
	configJSON := `{
		"id": "test-task",
		"reporters": [
			{"name": "kafka", "config": {}}
		]
	}`

	tc, err := ParseTaskConfig([]byte(configJSON))
	if err != nil {
		t.Fatalf("Failed to parse task config: %v", err)
	}
	if tc.ChannelCapacity.Intake != 1000 {
		t.Errorf("Expected default intake capacity 1000, got %d", tc.ChannelCapacity.Intake)
	}
	if tc.ChannelCapacity.SendBuffer != 10000 {
		t.Errorf("Expected default send buffer capacity 10000, got %d", tc.ChannelCapacity.SendBuffer)
	}
}

func TestParseTaskConfigAutoYAML(t *testing.T) {
	yamlDoc := []byte("id: test-task\nworkers: 2\nreporters:\n  - name: kafka\n    config: {}\n")
	tc, err := ParseTaskConfigAuto(yamlDoc, "task.yaml")
	if err != nil {
		t.Fatalf("Failed to parse YAML task config: %v", err)
	}
	if tc.ID != "test-task" || tc.Workers != 2 {
		t.Errorf("unexpected parsed config: %+v", tc)
	}
}

func TestTaskConfigMarshalUnmarshal(t *testing.T) {
	tc := &TaskConfig{
		ID:               "test-task",
		Workers:          4,
		DispatchStrategy: "round-robin",
		Reporters: []ReporterConfig{
			{Name: "kafka", Config: map[string]any{"endpoint": "localhost:9092"}},
		},
	}

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("Failed to marshal task config: %v", err)
	}

	var tc2 TaskConfig
	if err := json.Unmarshal(data, &tc2); err != nil {
		t.Fatalf("Failed to unmarshal task config: %v", err)
	}

	if tc2.ID != tc.ID {
		t.Errorf("Expected ID %s, got %s", tc.ID, tc2.ID)
	}
	if tc2.DispatchStrategy != tc.DispatchStrategy {
		t.Errorf("Expected dispatch strategy %s, got %s", tc.DispatchStrategy, tc2.DispatchStrategy)
	}
}
