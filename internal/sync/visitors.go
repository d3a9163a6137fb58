package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/models"
)

// VisitorInput carries a visitor registration request
type VisitorInput struct {
	Name      string
	Document  *string
	Host      string
	Image     string // base64
	BeginTime *time.Time
	ExpiresAt *time.Time
}

// CreateVisitor registers a visitor locally and on both readers. On the
// readers a visitor is a regular user bounded by a validity window.
func (c *Coordinator) CreateVisitor(ctx context.Context, in VisitorInput) (*models.Visitor, *EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityVisitors)
	res.Total = 1

	visitor := &models.Visitor{
		Name:      in.Name,
		Document:  in.Document,
		Host:      in.Host,
		Image:     in.Image,
		BeginTime: in.BeginTime,
		ExpiresAt: in.ExpiresAt,
	}
	if err := c.db.Create(visitor).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create visitor %q: %w", in.Name, err)
	}

	deviceID, err := c.primary.CreateUser(ctx, visitorRecord(visitor))
	if err != nil {
		if derr := c.db.Unscoped().Delete(&models.Visitor{}, visitor.LocalID).Error; derr != nil {
			log.Printf("🛑 Rollback of visitor %d failed, canonical row is orphaned: %v", visitor.LocalID, derr)
		}
		res.addError(fmt.Sprintf("primary device: %v", err))
		return nil, res.finish(start), nil
	}
	if err := c.recordPrimary(models.EntityVisitors, visitor.LocalID, deviceID, &models.Visitor{}); err != nil {
		return nil, nil, err
	}
	visitor.PrimaryDeviceID = &deviceID

	c.pushVisitorImage(ctx, c.primary, models.PrimaryDevice, visitor, deviceID)

	if c.secondary != nil {
		if err := c.replicateVisitorTo(ctx, c.secondary, models.SecondaryDevice, visitor); err != nil {
			log.Printf("⚠️ Secondary reader: visitor %q not replicated: %v", in.Name, err)
		}
	}

	res.Success = 1
	c.audit("visitor_created", models.EntityVisitors, visitor.LocalID, map[string]interface{}{
		"name": in.Name, "deviceId": deviceID, "expiresAt": in.ExpiresAt,
	})
	return visitor, res.finish(start), nil
}

func (c *Coordinator) replicateVisitorTo(ctx context.Context, cl *device.Client, deviceIndex int, visitor *models.Visitor) error {
	deviceID, err := cl.CreateUser(ctx, visitorRecord(visitor))
	if err != nil {
		return err
	}
	if err := c.mapper.Record(models.EntityVisitors, deviceIndex, visitor.LocalID, deviceID); err != nil {
		return err
	}
	c.pushVisitorImage(ctx, cl, deviceIndex, visitor, deviceID)
	return nil
}

func (c *Coordinator) pushVisitorImage(ctx context.Context, cl *device.Client, deviceIndex int, visitor *models.Visitor, deviceID int64) {
	if visitor.Image == "" {
		return
	}
	raw, err := base64.StdEncoding.DecodeString(visitor.Image)
	if err == nil {
		err = cl.SetUserImage(ctx, deviceID, raw, true)
	}
	if err != nil {
		log.Printf("⚠️ Reader %d: face image for visitor %q failed: %v", deviceIndex, visitor.Name, err)
	}
}

// RevokeVisitor deletes a visitor from both readers, purges the face image
// and removes the canonical row
func (c *Coordinator) RevokeVisitor(ctx context.Context, localID uint) error {
	var visitor models.Visitor
	if err := c.db.First(&visitor, localID).Error; err != nil {
		return err
	}

	c.destroyOnBoth(ctx, models.EntityVisitors, localID, func(cl *device.Client, deviceID int64) error {
		if err := cl.DestroyUserImages(ctx, []int64{deviceID}); err != nil {
			log.Printf("⚠️ Image purge for visitor %d failed: %v", localID, err)
		}
		return cl.DestroyUser(ctx, deviceID)
	})

	if err := c.db.Unscoped().Delete(&models.Visitor{}, localID).Error; err != nil {
		return err
	}
	if err := c.mapper.Delete(models.EntityVisitors, localID); err != nil {
		return err
	}
	c.audit("visitor_revoked", models.EntityVisitors, localID, map[string]interface{}{"name": visitor.Name})
	return nil
}

// ExpiredVisitors lists visitors whose validity window has passed
func (c *Coordinator) ExpiredVisitors() ([]models.Visitor, error) {
	var visitors []models.Visitor
	err := c.db.Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).Find(&visitors).Error
	return visitors, err
}

// visitorRecord converts a visitor to the reader wire form
func visitorRecord(v *models.Visitor) device.UserRecord {
	rec := device.UserRecord{Name: v.Name}
	if v.Document != nil {
		rec.Registration = *v.Document
	}
	if v.BeginTime != nil {
		rec.BeginTime = v.BeginTime.Unix()
	}
	if v.ExpiresAt != nil {
		rec.EndTime = v.ExpiresAt.Unix()
	}
	return rec
}
