package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Merchant struct {
	bun.BaseModel `bun:"table:merchants"`

	ID          string    `bun:"id,pk" json:"id"`
	OwnerUserID string    `bun:"owner_user_id,unique,notnull" json:"ownerUserId"`
	Name        string    `bun:"name,notnull" json:"name"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
}
