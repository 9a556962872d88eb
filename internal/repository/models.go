package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
)

// MiningTaskRecord represents the mining_tasks table.
type MiningTaskRecord struct {
	ID         int64               `gorm:"column:id;primaryKey;autoIncrement"`
	TID        string              `gorm:"column:tid;type:varchar(64);uniqueIndex"`
	Status     model.TaskStatus    `gorm:"column:status;index"`
	StatusInfo string              `gorm:"column:status_info;type:text"`
	DatasetKey string              `gorm:"column:dataset_key;type:varchar(512)"`
	Format     model.DatasetFormat `gorm:"column:format;type:varchar(16)"`
	Params     JSONField           `gorm:"column:params;type:json"`
	ResultKey  string              `gorm:"column:result_key;type:varchar(512)"`
	UserName   string              `gorm:"column:user_name;type:varchar(128)"`
	CreateTime time.Time           `gorm:"column:create_time;autoCreateTime"`
	BeginTime  *time.Time          `gorm:"column:begin_time"`
	EndTime    *time.Time          `gorm:"column:end_time"`
}

// TableName returns the table name for MiningTaskRecord.
func (MiningTaskRecord) TableName() string {
	return "mining_tasks"
}

// ToModel converts the record to model.MiningTask. A params column that is
// not valid JSON for model.MiningParams yields an INVALID_INPUT error.
func (t *MiningTaskRecord) ToModel() (*model.MiningTask, error) {
	task := &model.MiningTask{
		ID:         t.ID,
		TaskUUID:   t.TID,
		Status:     t.Status,
		StatusInfo: t.StatusInfo,
		DatasetKey: t.DatasetKey,
		Format:     t.Format,
		ResultKey:  t.ResultKey,
		UserName:   t.UserName,
		CreateTime: t.CreateTime,
		BeginTime:  t.BeginTime,
		EndTime:    t.EndTime,
	}
	if t.Params != nil {
		if err := json.Unmarshal(t.Params, &task.Params); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput,
				fmt.Sprintf("invalid params for task %s", t.TID), err)
		}
	}
	return task, nil
}

// newTaskRecord converts a model.MiningTask into a record.
func newTaskRecord(task *model.MiningTask) (*MiningTaskRecord, error) {
	params, err := json.Marshal(task.Params)
	if err != nil {
		return nil, err
	}
	return &MiningTaskRecord{
		ID:         task.ID,
		TID:        task.TaskUUID,
		Status:     task.Status,
		StatusInfo: task.StatusInfo,
		DatasetKey: task.DatasetKey,
		Format:     task.Format,
		Params:     params,
		ResultKey:  task.ResultKey,
		UserName:   task.UserName,
		CreateTime: task.CreateTime,
		BeginTime:  task.BeginTime,
		EndTime:    task.EndTime,
	}, nil
}

// MiningResultRecord represents the mining_results table. The headline
// numbers are denormalized for listing; Result holds the whole document.
type MiningResultRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TID         string    `gorm:"column:tid;type:varchar(64);uniqueIndex"`
	Dataset     string    `gorm:"column:dataset;type:varchar(256);index"`
	Patterns    int       `gorm:"column:patterns"`
	InitialCost float64   `gorm:"column:initial_cost"`
	FinalCost   float64   `gorm:"column:final_cost"`
	StopReason  string    `gorm:"column:stop_reason;type:varchar(32)"`
	DurationMS  int64     `gorm:"column:duration_ms"`
	Result      JSONField `gorm:"column:result;type:json"`
	Version     string    `gorm:"column:version;type:varchar(32)"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for MiningResultRecord.
func (MiningResultRecord) TableName() string {
	return "mining_results"
}

// ToModel decodes the stored document.
func (r *MiningResultRecord) ToModel() (*model.MiningResult, error) {
	result := &model.MiningResult{}
	if r.Result != nil {
		if err := json.Unmarshal(r.Result, result); err != nil {
			return nil, err
		}
	}
	result.TaskUUID = r.TID
	if result.Version == "" {
		result.Version = r.Version
	}
	return result, nil
}

// Models lists every table owned by this package, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&MiningTaskRecord{}, &MiningResultRecord{}}
}

// JSONField is a raw JSON column.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
