package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage_SaveAndGetScene(t *testing.T) {
	// Create temp database
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	// Create a scene document
	doc := &SceneDocument{ID: 1, Name: "Test Scene 1", Data: []byte(`{"scene_ID": 1}`)}

	// Save the scene
	err = storage.SaveScene(doc)
	require.NoError(t, err)

	// Get the scene
	retrieved, err := storage.GetScene(1)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, doc.Name, retrieved.Name)
	assert.Equal(t, doc.Data, retrieved.Data)
}

func TestSQLiteStorage_ListScenes(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	// Create and save multiple scenes
	doc1 := &SceneDocument{ID: 1, Name: "Scene 1", Data: []byte(`{"scene_ID": 1}`)}
	doc2 := &SceneDocument{ID: 2, Name: "Scene 2", Data: []byte(`{"scene_ID": 2}`)}
	doc3 := &SceneDocument{ID: 3, Name: "Scene 3", Data: []byte(`{"scene_ID": 3}`)}

	require.NoError(t, storage.SaveScene(doc1))
	require.NoError(t, storage.SaveScene(doc2))
	require.NoError(t, storage.SaveScene(doc3))

	// List scenes
	docs, err := storage.ListScenes()
	require.NoError(t, err)

	assert.Len(t, docs, 3)
}

func TestSQLiteStorage_DeleteScene(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	// Create and save a scene
	doc := &SceneDocument{ID: 7, Name: "Delete Test", Data: []byte(`{"scene_ID": 7}`)}
	require.NoError(t, storage.SaveScene(doc))

	// Verify it exists
	_, err = storage.GetScene(7)
	require.NoError(t, err)

	// Delete the scene
	err = storage.DeleteScene(7)
	require.NoError(t, err)

	// Verify it's deleted
	_, err = storage.GetScene(7)
	assert.Error(t, err)
}

func TestSQLiteStorage_DeleteNonExistentScene(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	err = storage.DeleteScene(999)
	assert.Error(t, err)
}

func TestSQLiteStorage_UpdateScene(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	// Create and save a scene
	doc := &SceneDocument{ID: 3, Name: "Original Name", Data: []byte(`{"scene_ID": 3}`)}
	require.NoError(t, storage.SaveScene(doc))

	// Update the scene (SaveScene upserts by ID)
	doc.Name = "Updated Name"
	doc.Data = []byte(`{"scene_ID": 3, "current_effect_ID": 2}`)
	require.NoError(t, storage.SaveScene(doc))

	// Get and verify
	retrieved, err := storage.GetScene(3)
	require.NoError(t, err)

	assert.Equal(t, "Updated Name", retrieved.Name)
	assert.Equal(t, `{"scene_ID": 3, "current_effect_ID": 2}`, string(retrieved.Data))
}

func TestSQLiteStorage_GetNonExistentScene(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	_, err = storage.GetScene(999)
	assert.Error(t, err)
}

func TestSQLiteStorage_SceneDataRoundTrips(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	// Create a document holding a multi-scene payload
	data := []byte(`{"scenes": [{"scene_ID": 1}, {"scene_ID": 2}]}`)
	doc := &SceneDocument{ID: 4, Name: "Two Scenes", Data: data}

	// Save the document
	require.NoError(t, storage.SaveScene(doc))

	// Get and verify
	retrieved, err := storage.GetScene(4)
	require.NoError(t, err)

	assert.Equal(t, data, retrieved.Data)
	assert.Equal(t, "Two Scenes", retrieved.Name)
}

func TestSQLiteStorage_EmptyDatabase(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	storage, err := NewSQLiteStorage(tmpFile.Name())
	require.NoError(t, err)
	defer storage.Close()

	docs, err := storage.ListScenes()
	require.NoError(t, err)

	assert.Empty(t, docs)
}

func TestSQLiteStorage_InvalidPath(t *testing.T) {
	// Try to create storage with invalid path
	_, err := NewSQLiteStorage("/invalid/path/that/does/not/exist/test.db")
	// This might not fail immediately on some systems, so we don't assert error
	// but the test ensures no panic occurs
	if err != nil {
		t.Logf("Expected error for invalid path: %v", err)
	}
}
