package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/pillars/internal/store"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sample() *store.Dataset {
	end := t0.Add(30 * time.Minute)
	done := t0.Add(48 * time.Hour)
	linked := int64(1)
	return &store.Dataset{
		Pillars: []store.Pillar{
			{
				ID: 1, Name: "Ship the app", Status: store.PillarInProgress, Completion: 60,
				Type: store.TypeMain, AITone: store.ToneDirect, CreatedAt: t0, LastActivity: done,
				DoneDefinition: store.DoneDefinition{Technical: "builds", Live: "in store"},
				Tasks: []store.Task{
					{ID: 1, Name: "Login", Progress: 100, Status: store.TaskDone, CreatedAt: t0, CompletedAt: &done,
						ProgressHistory: []store.ProgressEntry{{Value: 50, At: t0}, {Value: 100, At: done}}},
					{ID: 2, Name: "Payments", Progress: 20, Status: store.TaskActive, CreatedAt: t0,
						ProgressHistory: []store.ProgressEntry{{Value: 20, At: t0}},
						Intention: &store.Intention{Trigger: "after coffee", Action: "open the IDE", Active: true},
						DoneCriteria: []store.Criterion{{Text: "refunds", Done: false}}},
				},
				Rewards: []store.Reward{{ID: "r1", Description: "Sushi", Condition: store.Condition{Kind: store.CondSessionsWeek, Target: 3}}},
			},
			{
				ID: 2, Name: "Side lab", Status: store.PillarNotStarted, Type: store.TypeLab,
				AITone: store.ToneSupportive, CreatedAt: t0,
				Tasks:   []store.Task{{ID: 3, Name: "Spike", Status: store.TaskActive, CreatedAt: t0, ProgressHistory: []store.ProgressEntry{}}},
				Rewards: []store.Reward{},
			},
		},
		Sessions: store.SessionLog{
			Current: &store.FinishSession{ID: "s2", TaskID: 2, PillarID: 1, StartTime: t0.Add(time.Hour), Status: store.SessionInProgress},
			History: []store.FinishSession{
				{ID: "s1", TaskID: 1, PillarID: 1, StartTime: t0, EndTime: &end, Status: store.SessionCompleted,
					Classification: &store.Classification{Status: store.ClassDone}},
			},
		},
		Ideas:        []store.Idea{{ID: "i1", Title: "Dark mode", Tags: []string{"ui"}, PillarID: &linked, CreatedAt: t0, UpdatedAt: t0}},
		NextPillarID: 3,
		NextTaskID:   4,
	}
}

func TestRoundTrip_Tables(t *testing.T) {
	ds := sample()

	tables := Normalize(ds)
	require.NoError(t, tables.Validate())
	assert.Equal(t, ds, Denormalize(tables))

	again := Normalize(Denormalize(tables))
	assert.Equal(t, tables, again)
}

func TestRoundTrip_Adapters(t *testing.T) {
	for _, shape := range []Shape{Legacy, Normalized} {
		t.Run(string(shape), func(t *testing.T) {
			payload, err := AdapterFor(shape).Encode(sample())
			require.NoError(t, err)

			detected, err := Detect(payload)
			require.NoError(t, err)
			assert.Equal(t, shape, detected)

			res, err := Load(payload)
			require.NoError(t, err)
			assert.Equal(t, sample(), res.Dataset)
			assert.Equal(t, Normalized, res.Shape)
			assert.False(t, res.Fallback)
			assert.Empty(t, res.Repairs)
		})
	}
}

func TestLoad_NormalizedWithMismatchedCountsFallsBack(t *testing.T) {
	payload, err := AdapterFor(Normalized).Encode(sample())
	require.NoError(t, err)

	// Drop one task row but leave the index untouched.
	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	tables := doc["tables"].(map[string]any)
	delete(tables["tasks"].(map[string]any), "2")
	payload, err = json.Marshal(doc)
	require.NoError(t, err)

	res, err := Load(payload)

	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.False(t, res.Migrated)
	assert.Equal(t, Normalized, res.Detected)
	assert.NotEmpty(t, res.Problems)
	assert.Equal(t, sample(), res.Dataset, "data recovered from the nested mirror")
}

func TestLoad_NormalizedTagWithoutMirror(t *testing.T) {
	payload := []byte(`{"schemaVersion":2,"tables":{"pillars":{},"pillarIds":[1],"tasks":{},"taskIds":[]}}`)

	res, err := Load(payload)

	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.False(t, res.Migrated)
	assert.Empty(t, res.Dataset.Pillars)
	assert.NotNil(t, res.Dataset.Sessions.History)
	assert.NotNil(t, res.Dataset.Ideas)
}

func TestLoad_LegacyMigrates(t *testing.T) {
	payload, err := AdapterFor(Legacy).Encode(sample())
	require.NoError(t, err)

	res, err := Load(payload)

	require.NoError(t, err)
	assert.Equal(t, Legacy, res.Detected)
	assert.Equal(t, Normalized, res.Shape)
	assert.True(t, res.Migrated)
}

func TestLoad_LegacyWithDuplicateIDsSkipsMigration(t *testing.T) {
	ds := sample()
	ds.Pillars[1].Tasks[0].ID = 2 // collides with a task in pillar 1
	payload, err := AdapterFor(Legacy).Encode(ds)
	require.NoError(t, err)

	res, err := Load(payload)

	require.NoError(t, err)
	assert.Equal(t, Legacy, res.Shape)
	assert.False(t, res.Migrated)
	assert.NotEmpty(t, res.Problems)
	assert.Len(t, res.Dataset.Pillars[0].Tasks, 2)
	assert.Len(t, res.Dataset.Pillars[1].Tasks, 1, "legacy data kept as-is")
}

func TestLoad_LegacyFlatSessionKeys(t *testing.T) {
	payload := []byte(`{
		"pillars": [],
		"currentSession": {"id": "open", "taskId": 1, "pillarId": 1, "startTime": "2025-03-01T09:00:00Z", "endTime": null, "status": "in_progress"},
		"sessionHistory": [{"id": "old", "taskId": 1, "pillarId": 1, "startTime": "2025-02-01T09:00:00Z", "endTime": "2025-02-01T09:30:00Z", "status": "completed"}]
	}`)

	res, err := Load(payload)

	require.NoError(t, err)
	require.NotNil(t, res.Dataset.Sessions.Current)
	assert.Equal(t, "open", res.Dataset.Sessions.Current.ID)
	require.Len(t, res.Dataset.Sessions.History, 1)
	assert.Equal(t, "old", res.Dataset.Sessions.History[0].ID)
}

func TestLoad_Garbage(t *testing.T) {
	_, err := Load([]byte("not json"))
	assert.Error(t, err)
}

func TestEncodeNormalized_RejectsInconsistentData(t *testing.T) {
	ds := sample()
	ds.Ideas = append(ds.Ideas, ds.Ideas[0])

	_, err := AdapterFor(Normalized).Encode(ds)

	var ie *InconsistencyError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Error(), "duplicate idea id")
}

func TestValidate_BackReference(t *testing.T) {
	tables := Normalize(sample())
	row := tables.Tasks[3]
	row.PillarID = 1
	tables.Tasks[3] = row

	err := tables.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "task 3 belongs to pillar 1")
}

func TestApplyDefaults_NoRecognizedTypes(t *testing.T) {
	ds := &store.Dataset{Pillars: []store.Pillar{{ID: 1}, {ID: 2, Type: "primary"}, {ID: 3}}}

	repairs := ApplyDefaults(ds)

	assert.Equal(t, store.TypeMain, ds.Pillars[0].Type)
	assert.Equal(t, store.TypeSecondary, ds.Pillars[1].Type)
	assert.Equal(t, store.TypeSecondary, ds.Pillars[2].Type)
	for _, p := range ds.Pillars {
		assert.Equal(t, store.TonePsychoeducation, p.AITone)
		assert.Equal(t, store.PillarNotStarted, p.Status)
		assert.NotNil(t, p.Tasks)
		assert.NotNil(t, p.Rewards)
	}
	assert.NotEmpty(t, repairs)
	assert.NotNil(t, ds.Ideas)
	assert.NotNil(t, ds.Sessions.History)
	assert.Equal(t, int64(4), ds.NextPillarID)
	assert.Equal(t, int64(1), ds.NextTaskID)
}

func TestApplyDefaults_SomeRecognizedTypes(t *testing.T) {
	ds := &store.Dataset{Pillars: []store.Pillar{
		{ID: 1, Type: "weird", AITone: "shouty"},
		{ID: 2, Type: store.TypeLab, AITone: store.ToneDirect},
	}}

	ApplyDefaults(ds)

	assert.Equal(t, store.TypeSecondary, ds.Pillars[0].Type)
	assert.Equal(t, store.TonePsychoeducation, ds.Pillars[0].AITone)
	assert.Equal(t, store.TypeLab, ds.Pillars[1].Type)
	assert.Equal(t, store.ToneDirect, ds.Pillars[1].AITone)
}

func TestApplyDefaults_SingleMain(t *testing.T) {
	ds := &store.Dataset{Pillars: []store.Pillar{
		{ID: 1, Type: store.TypeSecondary},
		{ID: 2, Type: store.TypeMain},
		{ID: 3, Type: store.TypeMain},
	}}

	ApplyDefaults(ds)

	assert.Equal(t, store.TypeMain, ds.Pillars[1].Type)
	assert.Equal(t, store.TypeSecondary, ds.Pillars[2].Type)
}

func TestApplyDefaults_Tasks(t *testing.T) {
	ds := &store.Dataset{
		Pillars: []store.Pillar{{ID: 1, Type: store.TypeMain, Tasks: []store.Task{
			{ID: 7, Progress: 140},
			{ID: 9, Progress: -3, Status: store.TaskStuck},
		}}},
		NextTaskID: 2,
	}

	ApplyDefaults(ds)

	assert.Equal(t, 100, ds.Pillars[0].Tasks[0].Progress)
	assert.Equal(t, store.TaskDone, ds.Pillars[0].Tasks[0].Status)
	assert.Equal(t, 0, ds.Pillars[0].Tasks[1].Progress)
	assert.Equal(t, store.TaskStuck, ds.Pillars[0].Tasks[1].Status)
	assert.Equal(t, int64(10), ds.NextTaskID)
}

func TestApplyDefaults_ClosedCurrentSession(t *testing.T) {
	end := t0.Add(time.Minute)
	ds := &store.Dataset{Sessions: store.SessionLog{
		Current: &store.FinishSession{ID: "s", StartTime: t0, EndTime: &end, Status: store.SessionCompleted},
	}}

	ApplyDefaults(ds)

	assert.Nil(t, ds.Sessions.Current)
	require.Len(t, ds.Sessions.History, 1)
	assert.Equal(t, "s", ds.Sessions.History[0].ID)
}
