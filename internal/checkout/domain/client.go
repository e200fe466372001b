// internal/checkout/domain/client.go
package domain

import "time"

// Client 是客户档案。email 是唯一键：首次 resolve 时创建，之后复用，
// resolve 不会更新已存在档案的任何字段。
type Client struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	Address   string
	CreatedAt time.Time
}

// ClientProfile 是 resolve 未命中时用于建档的数据。
type ClientProfile struct {
	Name    string
	Phone   string
	Address string
}
