package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id snowflake.ID) (*Project, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id snowflake.ID) error

	ReplaceHeadings(ctx context.Context, projectID snowflake.ID, headings []Heading) error
	ListHeadings(ctx context.Context, projectID snowflake.ID) ([]Heading, error)
}
