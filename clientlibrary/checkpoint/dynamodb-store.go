/*
 * Copyright (c) 2019 VMware, Inc.
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of this software and
 * associated documentation files (the "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is furnished to do
 * so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all copies or substantial
 * portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR IMPLIED, INCLUDING BUT
 * NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
 * WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 */
package checkpoint

import (
	"math"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/matryer/try"

	"github.com/vmware/vmware-go-cwl/clientlibrary/catalog"
	"github.com/vmware/vmware-go-cwl/clientlibrary/utils"
)

const (
	// StreamKeyKey is the partition key attribute: "<group>:<stream>".
	// ':' is not a legal log group character, so the key stays unique even
	// though both names may contain '/'.
	StreamKeyKey = "StreamKey"
	// GroupNameKey and StreamNameKey hold the identity split out, so loading
	// never has to parse the partition key.
	GroupNameKey  = "GroupName"
	StreamNameKey = "StreamName"
	// CheckpointKey holds the stream's next-token.
	CheckpointKey = "Checkpoint"
	// ModifiedTimeKeyAttr holds the snapshot timestamp.
	ModifiedTimeKeyAttr = "ModifiedTime"

	defaultStateStoreRetries = 5
)

func streamKey(identity catalog.StreamIdentity) string {
	return identity.GroupName + ":" + identity.StreamName
}

// DynamoStateStore implements StateStore on a DynamoDB table, one item per
// stream. It is the durable alternative to FileStateStore for hosts without
// persistent local disk.
type DynamoStateStore struct {
	TableName string
	Retries   int

	readCapacity  int64
	writeCapacity int64
	svc           dynamodbiface.DynamoDBAPI
	now           func() time.Time
}

func NewDynamoStateStore(tableName string, svc dynamodbiface.DynamoDBAPI) *DynamoStateStore {
	return &DynamoStateStore{
		TableName:     tableName,
		Retries:       defaultStateStoreRetries,
		readCapacity:  10,
		writeCapacity: 10,
		svc:           svc,
		now:           time.Now,
	}
}

// WithCapacity sets the provisioned throughput used when the table has to be
// created.
func (s *DynamoStateStore) WithCapacity(read, write int64) *DynamoStateStore {
	s.readCapacity = read
	s.writeCapacity = write
	return s
}

// Init creates the state table when it does not exist yet.
func (s *DynamoStateStore) Init() error {
	if s.doesTableExist() {
		return nil
	}
	return s.createTable()
}

func (s *DynamoStateStore) Save(tokens map[catalog.StreamIdentity]string) error {
	modifiedTime := s.now().UTC().Format(time.RFC3339)
	for identity, token := range tokens {
		item := map[string]*dynamodb.AttributeValue{
			StreamKeyKey:        {S: aws.String(streamKey(identity))},
			GroupNameKey:        {S: aws.String(identity.GroupName)},
			StreamNameKey:       {S: aws.String(identity.StreamName)},
			CheckpointKey:       {S: aws.String(token)},
			ModifiedTimeKeyAttr: {S: aws.String(modifiedTime)},
		}
		if err := s.putItem(&dynamodb.PutItemInput{
			TableName: aws.String(s.TableName),
			Item:      item,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStateStore) Load(groupName string) (map[catalog.StreamIdentity]string, error) {
	tokens := make(map[catalog.StreamIdentity]string)

	input := &dynamodb.ScanInput{TableName: aws.String(s.TableName)}
	for {
		resp, err := s.svc.Scan(input)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			group, ok := item[GroupNameKey]
			if !ok || aws.StringValue(group.S) != groupName {
				continue
			}
			stream, ok := item[StreamNameKey]
			if !ok {
				continue
			}
			identity := catalog.StreamIdentity{
				GroupName:  groupName,
				StreamName: aws.StringValue(stream.S),
			}
			if cp, ok := item[CheckpointKey]; ok {
				tokens[identity] = aws.StringValue(cp.S)
			}
		}

		if len(resp.LastEvaluatedKey) == 0 {
			return tokens, nil
		}
		input.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

func (s *DynamoStateStore) doesTableExist() bool {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(s.TableName),
	}
	_, err := s.svc.DescribeTable(input)
	return err == nil
}

func (s *DynamoStateStore) createTable() error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(StreamKeyKey),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(StreamKeyKey),
				KeyType:       aws.String("HASH"),
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(s.readCapacity),
			WriteCapacityUnits: aws.Int64(s.writeCapacity),
		},
		TableName: aws.String(s.TableName),
	}
	_, err := s.svc.CreateTable(input)
	return err
}

func (s *DynamoStateStore) putItem(input *dynamodb.PutItemInput) error {
	return try.Do(func(attempt int) (bool, error) {
		_, err := s.svc.PutItem(input)
		if code := utils.AWSErrCode(err); code == dynamodb.ErrCodeProvisionedThroughputExceededException ||
			code == dynamodb.ErrCodeInternalServerError {
			if attempt < s.Retries {
				// Backoff time as recommended by https://docs.aws.amazon.com/general/latest/gr/api-retries.html
				time.Sleep(time.Duration(math.Exp2(float64(attempt))*100) * time.Millisecond)
				return true, err
			}
		}
		return false, err
	})
}
