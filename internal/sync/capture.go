package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/facegate-io/facegate/internal/models"
)

const defaultCaptureQuality = 70

// CaptureResult reports the outcome of a remote face enrollment
type CaptureResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Image   string `json:"image,omitempty"` // base64, when retrievable
}

// CaptureUserFace enrolls a user's face directly on the primary reader and
// pulls the captured image back into the canonical store. A user with no
// primary mapping is pushed to the reader first. Pulling the image back is
// best effort since the face template already lives on the reader once the
// capture succeeds.
func (c *Coordinator) CaptureUserFace(ctx context.Context, localID uint, quality int) (*CaptureResult, error) {
	var user models.User
	if err := c.db.First(&user, localID).Error; err != nil {
		return nil, err
	}

	deviceID, ok, err := c.mapper.DeviceID(models.EntityUsers, models.PrimaryDevice, localID)
	if err != nil {
		return nil, err
	}
	if !ok {
		res, err := c.SyncUserToDevices(ctx, localID, SyncUserOptions{})
		if err != nil {
			return nil, err
		}
		if res.Failed > 0 {
			return nil, fmt.Errorf("user %d could not be pushed to the primary device: %v", localID, res.Errors)
		}
		deviceID, ok, err = c.mapper.DeviceID(models.EntityUsers, models.PrimaryDevice, localID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no primary device mapping for user %d after push", localID)
		}
	}

	if quality <= 0 {
		quality = defaultCaptureQuality
	}
	if err := c.primary.StartFaceCapture(ctx, deviceID, quality); err != nil {
		return nil, fmt.Errorf("failed to start face capture for user %d: %w", localID, err)
	}

	out := &CaptureResult{Success: true, Message: "face enrolled on the reader"}

	raw, err := c.primary.GetUserImage(ctx, deviceID)
	if err != nil {
		log.Printf("⚠️ Captured face for user %d could not be fetched back: %v", localID, err)
		return out, nil
	}
	out.Image = base64.StdEncoding.EncodeToString(raw)
	if err := c.db.Model(&models.User{}).Where("id = ?", localID).Update("image", out.Image).Error; err != nil {
		log.Printf("⚠️ Captured face for user %d not stored locally: %v", localID, err)
	}

	c.audit("face_captured", models.EntityUsers, localID, map[string]interface{}{
		"deviceId": deviceID, "quality": quality, "imageFetched": out.Image != "",
	})
	return out, nil
}
