package db

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var svc *dynamodb.Client

func Init() {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(os.Getenv("AWS_REGION")),
	)
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	svc = dynamodb.NewFromConfig(cfg)
	log.Println("DynamoDB Session Initialized")

	// DIAGNOSTIC INFO
	stsSvc := sts.NewFromConfig(cfg)
	identity, err := stsSvc.GetCallerIdentity(context.TODO(), &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Printf("DIAGNOSTIC ERROR: Could not get AWS identity: %v", err)
	} else {
		log.Printf("DIAGNOSTIC: Operating as Account: %s, ARN: %s", *identity.Account, *identity.Arn)
	}
	log.Printf("DIAGNOSTIC: Region: %s", cfg.Region)

	// Note: ListTables is optional diagnostic info, don't fail if not permitted
	tables, err := svc.ListTables(context.TODO(), &dynamodb.ListTablesInput{})
	if err != nil {
		log.Printf("DIAGNOSTIC: Could not list tables (permission may be restricted): %v", err)
	} else {
		log.Printf("DIAGNOSTIC: Found Tables: %v", tables.TableNames)
	}
}

// Model: EstimateRecord is the archived outcome of one accepted estimate.
// Rooms themselves live in Redis and expire; accepted estimates are the only
// thing worth keeping past the room's lifetime.
type EstimateRecord struct {
	RoomID         string `json:"roomId" dynamodbav:"RoomID"`       // Partition Key
	Timestamp      int64  `json:"timestamp" dynamodbav:"Timestamp"` // Sort Key
	StoryID        string `json:"storyId" dynamodbav:"StoryID"`
	StoryTitle     string `json:"storyTitle" dynamodbav:"StoryTitle"`
	EstimatedValue string `json:"estimatedValue" dynamodbav:"EstimatedValue"`
	Consensus      bool   `json:"consensus" dynamodbav:"Consensus"`
	VoteCount      int    `json:"voteCount" dynamodbav:"VoteCount"`
	Deck           string `json:"deck" dynamodbav:"Deck"`
	AcceptedBy     string `json:"acceptedBy" dynamodbav:"AcceptedBy"`
}

const TableEstimates = "PokerEstimates"

func SaveEstimate(rec EstimateRecord) error {
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return err
	}
	_, err = svc.PutItem(context.TODO(), &dynamodb.PutItemInput{
		TableName: aws.String(TableEstimates),
		Item:      av,
	})
	if err == nil {
		log.Printf("[DB] Archived estimate %s=%s for room %s", rec.StoryID, rec.EstimatedValue, rec.RoomID)
	} else {
		log.Printf("[DB] Error archiving estimate: %v", err)
	}
	return err
}

func GetRoomHistory(roomID string, limit int32) ([]EstimateRecord, error) {
	out, err := svc.Query(context.TODO(), &dynamodb.QueryInput{
		TableName:              aws.String(TableEstimates),
		KeyConditionExpression: aws.String("RoomID = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: roomID},
		},
		ScanIndexForward: aws.Bool(false), // Descending timestamp
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}

	var records []EstimateRecord
	err = attributevalue.UnmarshalListOfMaps(out.Items, &records)
	return records, err
}

// CountEstimatesByRoom returns the number of archived estimates for a room
func CountEstimatesByRoom(roomID string) (int, error) {
	out, err := svc.Query(context.TODO(), &dynamodb.QueryInput{
		TableName:              aws.String(TableEstimates),
		KeyConditionExpression: aws.String("RoomID = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: roomID},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return 0, err
	}
	return int(out.Count), nil
}
