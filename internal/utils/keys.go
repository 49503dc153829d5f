package utils

import "fmt"

// BatchStorageKeys returns the destination keys a processed upload is copied to:
// uploads/batch-{batchID}/{videoID}.mp4 and .mp3.
func BatchStorageKeys(batchID, videoID string) (videoKey, audioKey string) {
	prefix := fmt.Sprintf("uploads/batch-%s/%s", batchID, videoID)
	return prefix + ".mp4", prefix + ".mp3"
}
