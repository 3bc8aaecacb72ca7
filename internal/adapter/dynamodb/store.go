// Package dynamodb persists the region cache to a DynamoDB table. Each
// region is one item keyed by pk "REGION#<zip>"; a single "META" item holds
// the store-wide lastUpdated stamp.
package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/couchcryptid/region-data-service/internal/domain"
)

const (
	regionPrefix = "REGION#"
	metaKey      = "META"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	PutItem(ctx context.Context, in *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	Scan(ctx context.Context, in *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
}

// Store implements cache.Store over a DynamoDB table with a string "pk" hash key.
type Store struct {
	client Client
	table  string
}

// New creates a Store writing to table.
func New(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewClient(ctx context.Context, region, endpoint string) (*sdk.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

type regionItem struct {
	PK                string              `dynamodbav:"pk"`
	ZIP               string              `dynamodbav:"zip"`
	MedianSalePrice   *float64            `dynamodbav:"median_sale_price,omitempty"`
	RentMedian        *float64            `dynamodbav:"rent_median,omitempty"`
	PriceUpdatedAt    *string             `dynamodbav:"price_updated_at,omitempty"`
	SchoolSignal      *float64            `dynamodbav:"school_signal,omitempty"`
	SchoolUpdatedAt   *string             `dynamodbav:"school_updated_at,omitempty"`
	ParksCountPerSqMi *float64            `dynamodbav:"parks_count_per_sq_mi,omitempty"`
	ParksUpdatedAt    *string             `dynamodbav:"parks_updated_at,omitempty"`
	Sources           map[string][]string `dynamodbav:"sources,omitempty"`
}

type metaItem struct {
	PK          string    `dynamodbav:"pk"`
	LastUpdated time.Time `dynamodbav:"last_updated"`
}

func toItem(r domain.RegionRecord) regionItem {
	item := regionItem{
		PK:                regionPrefix + r.ZIP,
		ZIP:               r.ZIP,
		MedianSalePrice:   r.MedianSalePrice,
		RentMedian:        r.RentMedian,
		PriceUpdatedAt:    r.PriceUpdatedAt,
		SchoolSignal:      r.SchoolSignal,
		SchoolUpdatedAt:   r.SchoolUpdatedAt,
		ParksCountPerSqMi: r.ParksCountPerSqMi,
		ParksUpdatedAt:    r.ParksUpdatedAt,
	}
	if len(r.Sources) > 0 {
		item.Sources = make(map[string][]string, len(r.Sources))
		for c, tags := range r.Sources {
			item.Sources[string(c)] = tags
		}
	}
	return item
}

func (item regionItem) record() domain.RegionRecord {
	r := domain.RegionRecord{
		ZIP:               item.ZIP,
		MedianSalePrice:   item.MedianSalePrice,
		RentMedian:        item.RentMedian,
		PriceUpdatedAt:    item.PriceUpdatedAt,
		SchoolSignal:      item.SchoolSignal,
		SchoolUpdatedAt:   item.SchoolUpdatedAt,
		ParksCountPerSqMi: item.ParksCountPerSqMi,
		ParksUpdatedAt:    item.ParksUpdatedAt,
	}
	if len(item.Sources) > 0 {
		r.Sources = make(map[domain.Category][]string, len(item.Sources))
		for c, tags := range item.Sources {
			r.Sources[domain.Category(c)] = tags
		}
	}
	return r
}

// Save writes every region, then the lastUpdated stamp.
func (s *Store) Save(ctx context.Context, regions []domain.RegionRecord, lastUpdated time.Time) error {
	for _, r := range regions {
		if err := s.put(ctx, toItem(r)); err != nil {
			return fmt.Errorf("save region %s: %w", r.ZIP, err)
		}
	}
	if err := s.put(ctx, metaItem{PK: metaKey, LastUpdated: lastUpdated.UTC()}); err != nil {
		return fmt.Errorf("save last updated: %w", err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &sdk.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("PutItem failed: %w", err)
	}
	return nil
}

// Load scans the whole table.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.Snapshot{Regions: make(map[string]domain.RegionRecord)}

	paginator := sdk.NewScanPaginator(s.client, &sdk.ScanInput{TableName: aws.String(s.table)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("scan %s: %w", s.table, err)
		}
		for _, av := range page.Items {
			if err := decodeInto(&snap, av); err != nil {
				return domain.Snapshot{}, err
			}
		}
	}
	return snap, nil
}

func decodeInto(snap *domain.Snapshot, av map[string]types.AttributeValue) error {
	pk, ok := av["pk"].(*types.AttributeValueMemberS)
	if !ok {
		return nil
	}
	switch {
	case pk.Value == metaKey:
		var meta metaItem
		if err := attributevalue.UnmarshalMap(av, &meta); err != nil {
			return fmt.Errorf("unmarshal meta item: %w", err)
		}
		snap.LastUpdated = meta.LastUpdated
	case strings.HasPrefix(pk.Value, regionPrefix):
		var item regionItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return fmt.Errorf("unmarshal region item %s: %w", pk.Value, err)
		}
		snap.Regions[item.ZIP] = item.record()
	}
	return nil
}
