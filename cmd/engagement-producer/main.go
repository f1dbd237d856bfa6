package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/campus-forum/internal/config"
	"github.com/campus-forum/internal/domain"
	"github.com/campus-forum/internal/postgres"
)

var commentTemplates = []string{
	"Same thing happened to me last semester",
	"Does anyone know if the library is open late this week?",
	"+1, this needs more attention",
	"Thanks for sharing!",
	"Is this still happening?",
	"The dining hall fixed this yesterday",
	"Count me in",
	"Who is organizing this?",
}

// loadPostIDs reads recent post ids from the forum database
func loadPostIDs(configPath string, limit int) ([]string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	repo, err := postgres.NewRepository(&cfg.Postgres, slog.Default())
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	posts, err := repo.ListPosts(ctx, domain.PostFilter{Order: domain.OrderNewest, Limit: limit})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids, nil
}

// nextEvent builds a random vote or comment. Early posts in the list are
// favoured so some of them start rising.
func nextEvent(postIDs, userIDs []string, commentRatio int) domain.EngagementEvent {
	var postIdx int
	hot := len(postIDs)
	if hot > 10 {
		hot = 10
	}
	if rand.Intn(100) < 70 {
		postIdx = rand.Intn(hot)
	} else {
		postIdx = rand.Intn(len(postIDs))
	}

	event := domain.EngagementEvent{
		PostID: postIDs[postIdx],
		UserID: userIDs[rand.Intn(len(userIDs))],
	}

	if rand.Intn(100) < commentRatio {
		event.Type = domain.EngagementComment
		event.Content = commentTemplates[rand.Intn(len(commentTemplates))]
		return event
	}

	event.Type = domain.EngagementVote
	event.VoteType = domain.VoteUp
	if rand.Intn(100) < 25 {
		event.VoteType = domain.VoteDown
	}
	return event
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "forum-engagement", "Kafka topic")
	postsFlag := flag.String("posts", "", "Post IDs to engage with (comma-separated); loaded from the database when empty")
	configPath := flag.String("config", "config.yaml", "Server config used to reach the database")
	totalUsers := flag.Int("users", 200, "Number of synthetic users")
	eventsPerSecond := flag.Int("rate", 50, "Events per second")
	commentRatio := flag.Int("comments", 20, "Percentage of events that are comments")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *eventsPerSecond <= 0 || *totalUsers <= 0 {
		log.Fatal("rate and users must be positive")
	}

	var postIDs []string
	if *postsFlag != "" {
		postIDs = strings.Split(*postsFlag, ",")
	} else {
		ids, err := loadPostIDs(*configPath, 200)
		if err != nil {
			log.Fatalf("Failed to load posts: %v", err)
		}
		postIDs = ids
	}
	if len(postIDs) == 0 {
		log.Fatal("No posts to engage with; create some posts first or pass -posts")
	}

	userIDs := make([]string, *totalUsers)
	for i := range userIDs {
		userIDs[i] = uuid.NewString()
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Forum Engagement Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Posts:            %d\n", len(postIDs))
	fmt.Printf("  Users:            %d\n", *totalUsers)
	fmt.Printf("  Events/sec:       %d\n", *eventsPerSecond)
	fmt.Printf("  Comment ratio:    %d%%\n", *commentRatio)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, saramaConfig)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount, sentCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func(reason string) {
		fmt.Printf("\n\n%s, shutting down...\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	send := func(event domain.EngagementEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}
		// Keyed by post so one post's events stay ordered on a partition
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.PostID),
			Value: sarama.ByteEncoder(data),
		}
		atomic.AddInt64(&sentCount, 1)
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ticker := time.NewTicker(time.Second / time.Duration(*eventsPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	for {
		select {
		case <-sigChan:
			shutdown("Interrupted")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached")
				return
			}
			send(nextEvent(postIDs, userIDs, *commentRatio))

		case <-statsTicker.C:
			fmt.Printf("[%s] Produced: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sentCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
