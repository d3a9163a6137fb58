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

// UserInput carries everything needed to create a user across the store and
// the readers in one pass
type UserInput struct {
	Name         string
	Registration *string
	Password     string
	BeginTime    *time.Time
	EndTime      *time.Time
	Image        string // base64
	Cards        []int64
	QRValues     []string
	RuleLocalIDs []uint
}

// CreateUser creates a user locally and on both readers, including cards,
// QR credentials, face image and access-rule links
func (c *Coordinator) CreateUser(ctx context.Context, in UserInput) (*models.User, *EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityUsers)
	res.Total = 1

	user := &models.User{
		Name:         in.Name,
		Registration: in.Registration,
		Password:     in.Password,
		BeginTime:    in.BeginTime,
		EndTime:      in.EndTime,
		Image:        in.Image,
	}
	if err := c.db.Create(user).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create user %q: %w", in.Name, err)
	}

	deviceID, err := c.primary.CreateUser(ctx, userRecord(user))
	if err != nil {
		if derr := c.db.Unscoped().Delete(&models.User{}, user.LocalID).Error; derr != nil {
			log.Printf("🛑 Rollback of user %d failed, canonical row is orphaned: %v", user.LocalID, derr)
		}
		res.addError(fmt.Sprintf("primary device: %v", err))
		return nil, res.finish(start), nil
	}
	if err := c.recordPrimary(models.EntityUsers, user.LocalID, deviceID, &models.User{}); err != nil {
		return nil, nil, err
	}
	user.PrimaryDeviceID = &deviceID

	c.pushUserAttachments(ctx, c.primary, models.PrimaryDevice, user, deviceID, in, res, true)

	if c.secondary != nil {
		if err := c.replicateUserTo(ctx, c.secondary, models.SecondaryDevice, user, in); err != nil {
			log.Printf("⚠️ Secondary reader: user %q not replicated: %v", in.Name, err)
		}
	}

	res.Success = 1
	c.audit("user_created", models.EntityUsers, user.LocalID, map[string]interface{}{
		"name": in.Name, "deviceId": deviceID, "cards": len(in.Cards), "hasImage": in.Image != "",
	})
	return user, res.finish(start), nil
}

// pushUserAttachments sends image, cards, QR codes and rule links to one
// reader. When writeLocal is set the canonical sub-rows are created too
// (exactly once, during the primary pass).
func (c *Coordinator) pushUserAttachments(ctx context.Context, cl *device.Client, deviceIndex int, user *models.User, deviceID int64, in UserInput, res *EntitySyncResult, writeLocal bool) {
	if in.Image != "" {
		raw, err := base64.StdEncoding.DecodeString(in.Image)
		if err == nil {
			err = cl.SetUserImage(ctx, deviceID, raw, true)
		}
		if err != nil {
			log.Printf("⚠️ Reader %d: face image for %q failed: %v", deviceIndex, user.Name, err)
			if writeLocal {
				res.addError(fmt.Sprintf("face image: %v", err))
			}
		}
	}

	for _, value := range in.Cards {
		if _, err := cl.CreateCard(ctx, value, deviceID); err != nil {
			log.Printf("⚠️ Reader %d: card %d for %q failed: %v", deviceIndex, value, user.Name, err)
			if writeLocal {
				res.addError(fmt.Sprintf("card %d: %v", value, err))
			}
		}
		if writeLocal {
			card := models.Card{Value: value, UserID: user.LocalID}
			if err := c.db.Create(&card).Error; err != nil {
				res.addError(fmt.Sprintf("local card %d: %v", value, err))
			}
		}
	}

	for _, value := range in.QRValues {
		if _, err := cl.CreateQRCode(ctx, value, deviceID); err != nil {
			log.Printf("⚠️ Reader %d: qr code for %q failed: %v", deviceIndex, user.Name, err)
		}
		if writeLocal {
			qr := models.QRCode{Value: value, UserID: user.LocalID}
			if err := c.db.Create(&qr).Error; err != nil {
				res.addError(fmt.Sprintf("local qr code: %v", err))
			}
		}
	}

	for _, ruleLocalID := range in.RuleLocalIDs {
		ruleDeviceID, ok, err := c.mapper.DeviceID(models.EntityAccessRules, deviceIndex, ruleLocalID)
		if err == nil && ok {
			if err := cl.CreateUserAccessRule(ctx, deviceID, ruleDeviceID); err != nil {
				log.Printf("⚠️ Reader %d: rule link %d for %q failed: %v", deviceIndex, ruleLocalID, user.Name, err)
			}
		}
		if writeLocal {
			edge := models.UserAccessRule{UserID: user.LocalID, AccessRuleID: ruleLocalID}
			if err := c.db.Create(&edge).Error; err != nil {
				res.addError(fmt.Sprintf("link rule %d: %v", ruleLocalID, err))
			}
		}
	}
}

func (c *Coordinator) replicateUserTo(ctx context.Context, cl *device.Client, deviceIndex int, user *models.User, in UserInput) error {
	deviceID, err := cl.CreateUser(ctx, userRecord(user))
	if err != nil {
		return err
	}
	if err := c.mapper.Record(models.EntityUsers, deviceIndex, user.LocalID, deviceID); err != nil {
		return err
	}
	c.pushUserAttachments(ctx, cl, deviceIndex, user, deviceID, in, nil, false)
	return nil
}

// SyncUserOptions select which attachments a push refreshes
type SyncUserOptions struct {
	SyncImage bool
	SyncCards bool
	SyncRules bool
}

// SyncUserToDevices pushes an existing canonical user to both readers,
// updating when a mapping exists and creating otherwise. No rollback: an
// update is not guaranteed atomic across replicas.
func (c *Coordinator) SyncUserToDevices(ctx context.Context, localID uint, opts SyncUserOptions) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityUsers)
	res.Total = 1

	var user models.User
	if err := c.db.Preload("Cards").Preload("QRCodes").First(&user, localID).Error; err != nil {
		return nil, err
	}
	var edges []models.UserAccessRule
	if err := c.db.Where("user_id = ?", localID).Find(&edges).Error; err != nil {
		return nil, err
	}

	in := UserInput{Image: "", RuleLocalIDs: make([]uint, 0, len(edges))}
	if opts.SyncImage {
		in.Image = user.Image
	}
	if opts.SyncCards {
		for _, card := range user.Cards {
			in.Cards = append(in.Cards, card.Value)
		}
		for _, qr := range user.QRCodes {
			in.QRValues = append(in.QRValues, qr.Value)
		}
	}
	if opts.SyncRules {
		for _, e := range edges {
			in.RuleLocalIDs = append(in.RuleLocalIDs, e.AccessRuleID)
		}
	}

	// Primary: strict for the entity itself
	if err := c.pushUserTo(ctx, c.primary, models.PrimaryDevice, &user, in, true); err != nil {
		res.addError(fmt.Sprintf("primary device: %v", err))
		return res.finish(start), nil
	}
	res.Success = 1

	if c.secondary != nil {
		if err := c.pushUserTo(ctx, c.secondary, models.SecondaryDevice, &user, in, false); err != nil {
			log.Printf("⚠️ Secondary reader: push of user %d failed: %v", localID, err)
		}
	}

	return res.finish(start), nil
}

// pushUserTo updates-or-creates one user on one reader
func (c *Coordinator) pushUserTo(ctx context.Context, cl *device.Client, deviceIndex int, user *models.User, in UserInput, isPrimary bool) error {
	deviceID, ok, err := c.mapper.DeviceID(models.EntityUsers, deviceIndex, user.LocalID)
	if err != nil {
		return err
	}
	if ok {
		if err := cl.ModifyUser(ctx, deviceID, userRecord(user)); err != nil {
			return err
		}
	} else {
		deviceID, err = cl.CreateUser(ctx, userRecord(user))
		if err != nil {
			return err
		}
		if isPrimary {
			if err := c.recordPrimary(models.EntityUsers, user.LocalID, deviceID, &models.User{}); err != nil {
				return err
			}
		} else if err := c.mapper.Record(models.EntityUsers, deviceIndex, user.LocalID, deviceID); err != nil {
			return err
		}
	}
	c.pushUserAttachments(ctx, cl, deviceIndex, user, deviceID, in, nil, false)
	return nil
}

// DeleteUser removes a user from both readers (ignoring individual failures)
// and then unconditionally from the canonical store
func (c *Coordinator) DeleteUser(ctx context.Context, localID uint) error {
	var user models.User
	if err := c.db.First(&user, localID).Error; err != nil {
		return err
	}

	c.destroyOnBoth(ctx, models.EntityUsers, localID, func(cl *device.Client, deviceID int64) error {
		return cl.DestroyUser(ctx, deviceID)
	})

	for _, child := range []interface{}{&models.Card{}, &models.QRCode{}, &models.Template{}} {
		if err := c.db.Where("user_id = ?", localID).Delete(child).Error; err != nil {
			return err
		}
	}
	if err := c.db.Where("user_id = ?", localID).Delete(&models.UserAccessRule{}).Error; err != nil {
		return err
	}
	if err := c.db.Where("user_id = ?", localID).Delete(&models.UserGroup{}).Error; err != nil {
		return err
	}
	if err := c.db.Unscoped().Delete(&models.User{}, localID).Error; err != nil {
		return err
	}
	if err := c.mapper.Delete(models.EntityUsers, localID); err != nil {
		return err
	}
	c.audit("user_deleted", models.EntityUsers, localID, map[string]interface{}{"name": user.Name})
	return nil
}

// userRecord converts a canonical user to the reader wire form
func userRecord(u *models.User) device.UserRecord {
	rec := device.UserRecord{
		Name:     u.Name,
		Password: u.Password,
		Salt:     u.Salt,
	}
	if u.Registration != nil {
		rec.Registration = *u.Registration
	}
	if u.BeginTime != nil {
		rec.BeginTime = u.BeginTime.Unix()
	}
	if u.EndTime != nil {
		rec.EndTime = u.EndTime.Unix()
	}
	return rec
}
